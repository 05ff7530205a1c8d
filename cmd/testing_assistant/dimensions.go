package main

func init() {
	rootCmd.AddCommand(newStageCommand(
		"dimensions",
		"Generate test dimensions from the requirement documents",
		"Analyze the module's requirement documents and extract the core, independent and ancillary dimensions along which it must be tested, with their values and constraints.",
	))
}
