// Package cli implements the interactive Reelproof upload console.
//
// The loop reads commands from stdin and drives the upload queue manager:
//
//	login                 — authenticate against the server
//	add [category] files  — validate and enqueue files for upload
//	list                  — show the queue with progress and speed
//	pause|resume <id>     — suspend / continue a transfer
//	cancel <id>           — abort a transfer and remove its server record
//	retry <id>            — re-queue a failed transfer from scratch
//	clear [all]           — remove completed (or all) tasks
//	max <n>               — change the concurrency cap
//
// Task ids may be abbreviated to any unambiguous prefix.
package cli
