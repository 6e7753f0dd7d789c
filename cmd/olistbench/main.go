package main

import "fmt"

func main() {
	for _, w := range DefaultWorkloads {
		res := Run(w)
		ops := float64(res.CompletedOps) / res.Elapsed.Seconds()
		fmt.Printf("%-32s concurrency=%-3d elapsed=%-10s ops/s=%-12.0f peak=%-6d final=%d\n",
			w.Name, w.Concurrency, res.Elapsed.Round(1e6), ops, res.PeakOutstanding, res.FinalOutstanding)
	}
}
