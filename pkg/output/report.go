package output

import (
	"fmt"

	"github.com/fatih/color"
)

// PrintDiffReport prints a nicely formatted state-diff report with colors
func PrintDiffReport(project, selector string, graphNodes int, modified []string) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("dbt CI - State Diff Report")
	bold.Println("==========================")
	fmt.Printf("Project: %s\n", project)
	fmt.Printf("Selector: %s\n", selector)
	fmt.Printf("Lineage map: %d resources\n", graphNodes)
	fmt.Println()

	if len(modified) == 0 {
		green.Println("No modified resources detected")
		return
	}

	yellow.Printf("Modified: %d resource(s)\n", len(modified))
	fmt.Println()
	red.Println("MODIFIED RESOURCES:")
	for _, name := range modified {
		cyan.Printf("  %s\n", name)
	}
	fmt.Println()

	summaryColor := yellow
	if len(modified) > 25 {
		summaryColor = red
	}
	summaryColor.Printf("Summary: %d of %d resources need a CI rebuild\n", len(modified), graphNodes)
}
