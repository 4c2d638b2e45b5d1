package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jpillora/fatvol/internal/fat"
	"github.com/jpillora/fatvol/internal/shell"
)

func main() {
	app := cli.App{
		Name:      "fatsh",
		Usage:     "Open a volume image and drive it interactively",
		ArgsUsage: "BACKING_FILE",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func run(context *cli.Context) error {
	path := context.Args().First()
	if path == "" {
		return cli.Exit("missing required argument: BACKING_FILE", 1)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	size := uint64(info.Size())
	if size < fat.SectorSize {
		size = fat.SectorSize
	}

	engine, err := fat.NewEngine(file, size)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if info.Size() > 0 {
		if err := engine.Mount(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	sh := shell.New(engine)
	sh.RunREPL(os.Stdin)
	return nil
}
