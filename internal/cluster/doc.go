// Package cluster groups the files of a pull request diff into named,
// reviewable units.
//
// SplitFiles cuts a unified diff into per-file sections. The model (or the
// deterministic ByDirectory fallback) then assigns filenames to clusters and
// returns JSON; Parse validates that JSON, hydrates each file with its diff
// text and collects any files the grouping left out into a trailing
// "Unclustered changes" cluster so every changed file is reviewed.
package cluster
