// Package project manages construction project records.
//
// Project Representation:
//
// Each project belongs to one tenant and carries:
//   - Numeric ID and display name (the name may be blank)
//   - Type, villa category and contract type
//   - Internal code of the form M<digits> ending in an odd digit
//   - Contract value and a status derived from recorded payments
//
// Directory Provisioning:
//
// Creating a project provisions its document tree right after the insert:
//
//	projects/project_{id}_{slug}/{phase-dir}/[{subfolder}/]
//
// Provisioning problems are logged and returned in the report; they never
// fail creation. Renaming a project provisions the tree under the new slug.
// The old tree and the files in it stay where they are.
//
// Deletion is soft and never touches files.
package project
