package sdr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

const DefaultSoapyUtil = "SoapySDRUtil"

// SoapyEnumerator lists devices through the SoapySDR device discovery
type SoapyEnumerator struct {
	Command string
}

func NewSoapyEnumerator(command string) *SoapyEnumerator {
	if command == "" {
		command = DefaultSoapyUtil
	}
	return &SoapyEnumerator{Command: command}
}

func (s *SoapyEnumerator) Enumerate(ctx context.Context) ([]Device, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, s.Command, "--find")
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		log.Error("soapy device discovery failed", zap.String("cmd", cmd.String()), zap.String("stderr", strings.TrimSpace(stderr.String())), zap.Error(err))
		return nil, fmt.Errorf("%s --find: %w", s.Command, err)
	}

	return ParseSoapyFind(bytes.NewReader(out))
}

// ParseSoapyFind reads the "Found device N" blocks of the discovery output.
// Each block lists "key = value" pairs, only driver, label and serial are kept.
func ParseSoapyFind(r io.Reader) ([]Device, error) {
	var devices []Device
	var current *Device

	flush := func() {
		if current != nil && current.Driver != "" {
			devices = append(devices, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Found device") {
			flush()
			current = &Device{}
			continue
		}

		if current == nil {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch strings.TrimSpace(key) {
		case "driver":
			current.Driver = strings.TrimSpace(value)
		case "label":
			current.Label = strings.TrimSpace(value)
		case "serial":
			current.Serial = strings.TrimSpace(value)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}
