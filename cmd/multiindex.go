/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/notargets/gofea/basis"
	"github.com/spf13/cobra"
)

// MultiIndexCmd represents the multiindex command
var MultiIndexCmd = &cobra.Command{
	Use:   "multiindex",
	Short: "Print the simplex multi-indices of degree p in dimension TD",
	Run: func(cmd *cobra.Command, args []string) {
		p, _ := cmd.Flags().GetInt("degree")
		TD, _ := cmd.Flags().GetInt("dimension")
		mi, err := basis.MultiIndexMatrix(p, TD)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		for i, a := range mi {
			fmt.Printf("%4d %v\n", i, a)
		}
	},
}

func init() {
	rootCmd.AddCommand(MultiIndexCmd)
	MultiIndexCmd.Flags().IntP("degree", "n", 1, "polynomial degree")
	MultiIndexCmd.Flags().IntP("dimension", "t", 2, "topological dimension, 1 to 3")
}
