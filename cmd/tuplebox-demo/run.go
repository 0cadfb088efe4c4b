package main

import (
	"fmt"

	"github.com/colinhart/tuplebox"
	"github.com/spf13/cobra"
)

// loadData stands in for the original worked example's pandas-backed
// loader: it manufactures a small numeric series and returns it as a
// tuplebox.Array, so a call to it going over the wire at the top level
// exercises the shared-memory fast path.
var loadData = tuplebox.Register("load_data", func(a tuplebox.Args) (any, error) {
	values := make([]float64, 8)
	for i := range values {
		values[i] = float64(i*i) * 0.5
	}
	return tuplebox.ArrayFromFloat64([]int{len(values)}, values), nil
}, tuplebox.WithPackages("math"))

// assess takes a registered callable as its argument. Calling loader.Call()
// from inside assess's own body happens while assess is already running
// inside a worker, so tuplebox routes that nested call in-process instead
// of opening a second sandbox connection - both functions share the one
// sandbox the tuple resolver provisioned for this invocation.
var assess = tuplebox.Register("assess", func(a tuplebox.Args) (any, error) {
	loader, ok := a.Positional[0].(tuplebox.CallableRef)
	if !ok {
		return nil, fmt.Errorf("assess: expected a registered callable argument, got %T", a.Positional[0])
	}
	result, err := loader.Call()
	if err != nil {
		return nil, err
	}

	var values []float64
	switch v := result.(type) {
	case tuplebox.Array:
		values = v.Float64()
	case *tuplebox.Array:
		values = v.Float64()
	default:
		return nil, fmt.Errorf("assess: loader returned %T, want an array", result)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
})

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the load_data/assess worked example end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		mean, err := assess.Call(loadData)
		if err != nil {
			return err
		}
		fmt.Printf("assess(load_data) = %v\n", mean)

		result, err := loadData.Call()
		if err != nil {
			return err
		}
		arr, ok := result.(*tuplebox.Array)
		if !ok {
			return fmt.Errorf("run: load_data() returned %T, want *tuplebox.Array", result)
		}
		defer arr.Close()
		fmt.Printf("load_data() (direct, zero-copy) shape=%v values=%v\n", arr.Shape, arr.Float64())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
