package main

import (
	"flag"
	"log"

	"github.com/danmuck/hitension/internal/config"
)

func main() {
	kind := flag.String("kind", "server", "config kind: server|client")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing server config file")
	input := flag.String("input", "cmd/htserver/config.toml", "server config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.LoadServerConfig(*input)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := config.ServerRuntime(cfg); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated server config at %s", *input)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "server":
			target = "cmd/htserver/config.toml"
		case "client":
			target = "cmd/htclient/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
