/*
Package cli provides command-line interface utilities for ratecontrol.

The cli package includes output formatters, a progress reporter, error
types with exit codes, and signal helpers used by the ratecontrol command.

Output Formatting:

Results that implement Table render as aligned text or CSV; every result
renders as JSON:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "admitted")
	progress.Start(10 * time.Second)
	progress.Update(time.Since(start), admitted.Load())
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	reload := cli.ReloadSignals() // SIGHUP
*/
package cli
