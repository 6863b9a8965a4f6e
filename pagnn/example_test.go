package pagnn_test

import (
	"fmt"
	"math/rand"

	"github.com/openfluke/pagnn/nn"
	"github.com/openfluke/pagnn/pagnn"
)

func ExampleDescribe() {
	layer, err := pagnn.New(pagnn.Config{
		Inputs:     4,
		Outputs:    3,
		Steps:      2,
		Activation: nn.ActivationReLU,
	}, rand.New(rand.NewSource(666)))
	if err != nil {
		panic(err)
	}
	fmt.Println(pagnn.Describe(layer, 0.3))
	fmt.Println(pagnn.Describe(layer, 0))
	// Output:
	// 70%_SparsePAGNN(#p=56, steps=2) + relu
	// DensePAGNN(#p=56, steps=2) + relu
}
