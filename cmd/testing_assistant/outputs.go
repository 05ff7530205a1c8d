package main

func init() {
	rootCmd.AddCommand(newStageCommand(
		"outputs",
		"Derive the expected result after each test step",
		"Walk every generated step file and derive the expected collateral state after each step, carrying the previous step's accepted state forward within a test case. Results land in expectedresults_<case>.csv sheets, one marker-delimited region per step.",
	))
}
