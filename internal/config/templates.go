package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `id = "htserver"
addr = ":34254"
admin_addr = ":9090"
cors_origins = ["http://localhost:3000"]

[session]
read_timeout = ""
write_timeout = ""
ack_timeout = ""
buffer_size = 65536
initial_words = 1048576
max_message_bytes = 0

[tls]
enabled = false
mutual = false
ca_file = ""
cert_file = ""
key_file = ""
`

const clientTemplate = `addr = "127.0.0.1:34254"
words = 1000000
chunks = 4
rounds = 10
command = "echo"
connect_timeout = "5s"
ack_timeout = "30s"
max_connect_attempts = 5
`
