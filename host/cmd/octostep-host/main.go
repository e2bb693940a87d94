package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"octostep/host/serial"
)

var (
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	configPath = flag.String("config", "", "Optional YAML config file")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

// hostConfig mirrors the YAML config file layout.
type hostConfig struct {
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
	Verbose bool   `yaml:"verbose"`
}

func loadConfig(path string) (*hostConfig, error) {
	cfg := &hostConfig{
		Device: "/dev/ttyACM0",
		Baud:   115200,
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *verbose || cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	log.WithFields(log.Fields{"device": cfg.Device, "baud": cfg.Baud}).Info("connecting to controller")

	portCfg := serial.DefaultConfig(cfg.Device)
	portCfg.Baud = cfg.Baud
	portCfg.ReadTimeout = 0 // block; the reader goroutine streams replies
	port, err := serial.Open(portCfg)
	if err != nil {
		log.Fatal(err)
	}
	defer port.Close()

	// Reader goroutine: print controller reply lines as they arrive.
	go func() {
		reply := bufio.NewScanner(port)
		for reply.Scan() {
			line := strings.TrimSpace(reply.Text())
			if line == "" {
				continue
			}
			fmt.Println(line)
		}
		if err := reply.Err(); err != nil {
			log.WithError(err).Debug("serial reader stopped")
		}
	}()

	fmt.Println("octostep console - HELP lists controller verbs, 'quit' exits")
	stdin := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			break
		}

		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			return
		}

		log.WithField("line", line).Debug("send")
		if _, err := port.Write([]byte(line + "\n")); err != nil {
			log.WithError(err).Error("write failed")
			return
		}
	}
}
