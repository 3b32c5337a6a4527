// Package inspect implements the "tdm inspect" commands: dry-run analyzers
// that report what an import would recognize without touching any session.
package inspect

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/trdlong"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/weather"
)

func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "analyze input files without importing them",
	}
	cmd.AddCommand(newTrdCmd())
	cmd.AddCommand(newWeatherCmd())
	return cmd
}

func newTrdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trd FILE",
		Short: "report recognized channels of a long-format telemetry CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(args[0], func(data []byte) any {
				return trdlong.Inspect(data)
			})
		},
	}
}

func newWeatherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weather FILE",
		Short: "report recognized columns of a weather CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(args[0], func(data []byte) any {
				return weather.Inspect(data)
			})
		},
	}
}

func printReport(file string, inspect func([]byte) any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	out, err := oj.Marshal(inspect(data), 2)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
