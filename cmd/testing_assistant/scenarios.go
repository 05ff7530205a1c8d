package main

func init() {
	rootCmd.AddCommand(newStageCommand(
		"scenarios",
		"Combine dimensions into prioritized test scenarios",
		"Combine the generated dimension values into valid scenario combinations, assign each a criticality, and record which dimensions it traces back to. Requires the dimensions stage output.",
	))
}
