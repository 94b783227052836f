package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmed20kamel/project-management-api/internal/layout"
	"github.com/ahmed20kamel/project-management-api/internal/sanitize"
)

// NextNumber returns one more than the highest trailing number among the
// subdirectories of dir whose name starts with base. It returns 1 when none
// match.
func NextNumber(ctx context.Context, backend Backend, dir, base string) (int, error) {
	names, err := backend.ListDirs(ctx, dir)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, name := range names {
		if !strings.HasPrefix(name, base) {
			continue
		}
		if n, ok := trailingNumber(strings.TrimPrefix(name, base)); ok && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// NumberedSubfolder formats a numbered subfolder label: "{base} {NN}", or
// just "{NN}" for an empty base.
func NumberedSubfolder(base string, n int) string {
	if base == "" {
		return fmt.Sprintf("%02d", n)
	}
	return fmt.Sprintf("%s %02d", base, n)
}

// NextSubfolder picks the next free numbered subfolder under the owner's
// phase directory, e.g. "ملحق 03" after "ملحق 01" and "ملحق 02".
func (s *Saver) NextSubfolder(ctx context.Context, owner layout.Owner, phase, base string) (string, error) {
	if owner == nil {
		return "", ErrUnresolvedOwner
	}
	id, name, ok := owner.ProjectRef()
	if !ok {
		return "", ErrUnresolvedOwner
	}

	base = sanitize.Segment(base, 0)
	n, err := NextNumber(ctx, s.backend, s.deriver.PhasePath(id, name, phase), base)
	if err != nil {
		return "", fmt.Errorf("scanning numbered subfolders: %w", err)
	}
	return NumberedSubfolder(base, n), nil
}

func trailingNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}
