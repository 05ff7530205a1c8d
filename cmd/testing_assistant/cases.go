package main

func init() {
	rootCmd.AddCommand(newStageCommand(
		"cases",
		"Generate test cases, one batch per scenario",
		"Generate detailed test cases for each scenario row, including validation focus, segment scope and execution order. Requires the scenarios stage output. Output accumulates across ranges, so partial runs with --start/--end extend the cases file.",
	))
}
