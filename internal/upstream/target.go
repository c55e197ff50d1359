package upstream

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
)

const httpsPort = 443

type Target struct {
	Host string
	Port int
	Path string
}

// TargetFromConfig reads the upstream location from snap.
func TargetFromConfig(snap *configpipeline.Snapshot) (Target, error) {
	host, ok := snap.Get(configpipeline.KeyPokeAPIHost)
	if !ok || host == "" {
		return Target{}, fmt.Errorf("config key %s not set", configpipeline.KeyPokeAPIHost)
	}

	port, err := snap.Int(configpipeline.KeyPokeAPIPort)
	if err != nil {
		return Target{}, err
	}

	return Target{
		Host: host,
		Port: port,
		Path: snap.String(configpipeline.KeyPokeAPIPath, "/"),
	}, nil
}

// URL uses https for port 443 and http otherwise.
func (t Target) URL() string {
	scheme := "http"
	if t.Port == httpsPort {
		scheme = "https"
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:   t.Path,
	}
	return u.String()
}
