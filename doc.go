// Package fieldsync keeps an editable single-field text control in step with
// a shared, remotely replicated text document.
//
// A Binding joins one Control to one Context. Remote edits reported by the
// context are written into the control with the user's selection carried
// across them; local edits are found by diffing the control's text against
// the document and sent back as at most one remove and one insert.
//
// Offsets and lengths are UTF-16 code units throughout. All Binding methods
// must run on the host's single event loop.
package fieldsync
