// Package ui provides console output for server startup.
package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// PrintBanner displays the startup banner.
func PrintBanner(serviceName, version, environment string, port int) {
	fmt.Println()

	cyan := color.New(color.FgCyan, color.Bold)
	white := color.New(color.FgWhite)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen, color.Bold)

	cyan.Println("╔══════════════════════════════════════════════╗")
	cyan.Print("║  ")
	white.Printf("%-44s", serviceName)
	cyan.Println("║")
	cyan.Print("║  ")
	dim.Printf("%-44s", fmt.Sprintf("version %s (%s)", version, environment))
	cyan.Println("║")
	cyan.Print("║  ")
	green.Printf("%-44s", fmt.Sprintf("listening on :%d", port))
	cyan.Println("║")
	cyan.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()
}
