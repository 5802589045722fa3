// Package preflight provides readiness checks for the filesystem paths,
// external tool, and mail relay that podwatch depends on.
//
// These checks run in two contexts:
//   - The daemon runtime calls RunAll at startup and logs every failure so a
//     misconfigured host is visible before the first marker arrives.
//   - The CLI "podwatch check" command renders the same results as a table.
//
// Checks never modify state; network checks are skipped when credentials are
// absent.
package preflight
