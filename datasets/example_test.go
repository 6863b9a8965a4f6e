package datasets_test

import (
	"fmt"

	"github.com/openfluke/pagnn/datasets"
)

func ExampleSimplePreprocess() {
	fmt.Println(datasets.SimplePreprocess("Tasty café, a 10/10!", true))
	// Output: [tasty cafe]
}

func ExampleMapSentiment() {
	for _, stars := range []float64{1, 2, 3, 4, 5} {
		fmt.Print(datasets.MapSentiment(stars), " ")
	}
	// Output: 0 0 1 2 2
}
