package main

import (
	"go.uber.org/fx"

	"github.com/vendorlink/vendorlink/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
