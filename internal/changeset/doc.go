// Package changeset identifies the pull request a review run operates on.
//
// A [Ref] is built once from the raw pr_url at pipeline entry by [Parse] and is
// never modified afterwards. Parse only accepts locators of the form
// https://<host>/<owner>/<repo>/pull/<number>; anything else is rejected before
// any remote call is made.
package changeset
