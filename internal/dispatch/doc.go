// Package dispatch executes prepared Phen2Gene batches.
//
// A Dispatcher locates the batch file of one corpus, reads its commands and
// hands them to the Runner selected by the configured environment:
//
//   - local: the batch runs as one bash script, through conda run when the
//     configured conda environment is available.
//   - docker: every batch line is the argument list of one container run of
//     the tool image, with the results and data directories bind-mounted.
//
// Both runners stream output line by line to Options.OnLine as it is
// produced, stop at the first non-zero exit and release processes and
// containers on every exit path, including context cancellation.
//
// State transitions are logged at debug level:
//
//	local:  Idle -> EnvironmentActivated -> Executing -> Done | Failed
//	docker: Idle -> Located -> Mounted -> Running -> Streaming -> NextCommand | Done, Failed on error
package dispatch
