package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/layout"
)

// CollisionPolicy decides what Save does when the derived path is taken.
type CollisionPolicy string

const (
	// CollisionRename appends _1, _2, ... to the file stem until a free name
	// is found.
	CollisionRename CollisionPolicy = "rename"

	// CollisionReject fails with ErrFileExists.
	CollisionReject CollisionPolicy = "reject"

	// CollisionOverwrite replaces the existing file.
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// DefaultMaxRenames bounds the rename search.
const DefaultMaxRenames = 1000

// ParseCollisionPolicy parses a policy name. Empty means CollisionRename.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CollisionRename, nil
	case CollisionRename, CollisionReject, CollisionOverwrite:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// SaveOptions carries per-upload parameters.
type SaveOptions struct {
	// Filename overrides OriginalName when set.
	Filename string

	// OriginalName is the client-supplied upload name.
	OriginalName string

	// Subfolder is inserted below the phase directory; may span levels.
	Subfolder string

	ContentType string
	Size        int64
}

// Saver writes uploaded files to their derived location.
type Saver struct {
	backend    Backend
	deriver    *layout.Deriver
	policy     CollisionPolicy
	maxRenames int
	logger     *zap.Logger
	tracer     trace.Tracer
	metrics    *Metrics
}

// NewSaver creates a Saver with the given collision policy.
func NewSaver(backend Backend, deriver *layout.Deriver, policy CollisionPolicy, logger *zap.Logger) (*Saver, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if deriver == nil {
		return nil, errors.New("deriver is required")
	}
	if _, err := ParseCollisionPolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = CollisionRename
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{
		backend:    backend,
		deriver:    deriver,
		policy:     policy,
		maxRenames: DefaultMaxRenames,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		metrics:    NewMetrics(),
	}, nil
}

// Policy returns the configured collision policy.
func (s *Saver) Policy() CollisionPolicy {
	return s.policy
}

// Save derives the path for owner and phase, writes r there and returns the
// stored relative path. An owner without a resolvable project is written to
// the flat legacy path "{phase}/main/{filename}".
func (s *Saver) Save(ctx context.Context, r io.Reader, owner layout.Owner, phase string, opts SaveOptions) (string, error) {
	ctx, span := s.tracer.Start(ctx, "storage.save")
	defer span.End()
	start := time.Now()

	name := opts.Filename
	if name == "" {
		name = opts.OriginalName
	}

	target, resolved := s.deriver.DeriveFor(owner, phase, name, opts.Subfolder)
	span.SetAttributes(
		attribute.String("phase", phase),
		attribute.Bool("owner.resolved", resolved),
		attribute.String("policy", string(s.policy)),
	)

	counter := &countingReader{r: r}
	stored, err := s.write(ctx, target, counter, opts)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrFileExists) {
			outcome = "rejected"
		}
		s.metrics.SavedFiles.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	outcome := "saved"
	if !resolved {
		outcome = "legacy"
		s.logger.Warn("owner has no resolvable project, saved to legacy path",
			zap.String("phase", phase),
			zap.String("path", stored))
	}
	s.metrics.SavedFiles.WithLabelValues(outcome).Inc()
	s.metrics.SavedBytes.Add(float64(counter.n))
	s.metrics.SaveDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("path", stored), attribute.Int64("bytes", counter.n))

	return stored, nil
}

func (s *Saver) write(ctx context.Context, target string, r io.Reader, opts SaveOptions) (string, error) {
	switch s.policy {
	case CollisionOverwrite:
		if err := s.backend.Write(ctx, target, r, opts.Size, opts.ContentType, WriteOverwrite); err != nil {
			return "", err
		}
		return target, nil

	case CollisionReject:
		if err := s.backend.Write(ctx, target, r, opts.Size, opts.ContentType, WriteExclusive); err != nil {
			if errors.Is(err, ErrFileExists) {
				s.metrics.Collisions.WithLabelValues(string(s.policy)).Inc()
			}
			return "", err
		}
		return target, nil
	}

	for i := 0; i <= s.maxRenames; i++ {
		candidate := numberedName(target, i)
		err := s.backend.Write(ctx, candidate, r, opts.Size, opts.ContentType, WriteExclusive)
		if err == nil {
			if i > 0 {
				s.logger.Debug("renamed upload to avoid collision",
					zap.String("derived", target),
					zap.String("stored", candidate))
			}
			return candidate, nil
		}
		if !errors.Is(err, ErrFileExists) {
			return "", err
		}
		if i == 0 {
			s.metrics.Collisions.WithLabelValues(string(s.policy)).Inc()
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTooManyCollisions, target)
}

// numberedName returns p with "_n" inserted before the extension; n == 0
// returns p unchanged.
func numberedName(p string, n int) string {
	if n == 0 {
		return p
	}
	dir, file := path.Split(p)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if stem == "" {
		stem, ext = file, ""
	}
	return fmt.Sprintf("%s%s_%d%s", dir, stem, n, ext)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
