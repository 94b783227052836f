// Package layout derives the on-disk location of project documents.
//
// Every attachment lives under a deterministic, human-readable path:
//
//	projects/project_{id}_{slug}/{phase-dir}/[{subfolder}/]{filename}
//
// Phase directories are bilingual labels taken from an immutable PhaseTable
// built once at startup. Records that own attachments expose their project
// through the Owner interface; when no project can be resolved the Deriver
// falls back to the flat legacy layout "{phase}/main/{filename}".
//
// The LegacyResolver maps old phase keys to the templates used before the
// nested layout existed. It is read-only: nothing writes to legacy paths.
//
// Everything in this package is pure string work. No function touches the
// filesystem.
package layout
