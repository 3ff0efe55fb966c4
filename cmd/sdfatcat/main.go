// Command sdfatcat mounts a FAT16/FAT32 disk image file and prints its FAT
// kind and label or dumps a file from it, exercising the fat package end to end without any SD-card
// or SPI hardware underneath.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/embedfat/sdfat/devicetest"
	"github.com/embedfat/sdfat/fat"
)

func main() {
	app := &cli.App{
		Name:  "sdfatcat",
		Usage: "inspect a FAT16/FAT32 disk image",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "partition",
				Value: 0,
				Usage: "MBR partition index (0-3), must be 0 for a bare boot sector image",
			},
			&cli.Uint64Flag{
				Name:  "sector-size",
				Value: 512,
				Usage: "device sector size in bytes",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "print the volume's FAT kind and label (directory entries are not listed)",
				ArgsUsage: "<image>",
				Action:    runLs,
			},
			{
				Name:      "cat",
				Usage:     "print a file's contents",
				ArgsUsage: "<image> <name>",
				Action:    runCat,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mountFromArgs(c *cli.Context, imagePathArgIndex int) (*fat.Volume, error) {
	imagePath := c.Args().Get(imagePathArgIndex)
	if imagePath == "" {
		return nil, fmt.Errorf("missing disk image path")
	}

	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", imagePath, err)
	}

	sectorSize := uint16(c.Uint64("sector-size"))
	device := devicetest.NewRAMDevice(raw, sectorSize)

	volume := fat.NewVolume(device)
	if err := volume.Mount(uint8(c.Uint64("partition"))); err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return volume, nil
}

func runLs(c *cli.Context) error {
	volume, err := mountFromArgs(c, 0)
	if err != nil {
		return err
	}
	defer volume.Unmount()

	fmt.Printf("fat kind: %s\n", volume.FatKind())
	label := volume.Label()
	fmt.Printf("label: %s\n", string(label[:]))
	return nil
}

func runCat(c *cli.Context) error {
	volume, err := mountFromArgs(c, 0)
	if err != nil {
		return err
	}
	defer volume.Unmount()

	name := c.Args().Get(1)
	if name == "" {
		return fmt.Errorf("missing file name")
	}

	f, err := fat.Open(volume, name, fat.Read)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	for {
		line, more, err := f.ReadLine(4096)
		if err != nil {
			return err
		}
		fmt.Println(line)
		if !more {
			break
		}
	}
	return nil
}
