package main

func init() {
	rootCmd.AddCommand(newStageCommand(
		"steps",
		"Generate executable steps for each test case",
		"Generate the executable step table for each test case, written to one teststeps_<case>.csv file per case. Requires the cases stage output.",
	))
}
