package configpipeline

const (
	KeyPingResponse = "PING_RESPONSE"
	KeyPokeAPIHost  = "POKE_API_HOST"
	KeyPokeAPIPort  = "POKE_API_PORT"
	KeyPokeAPIPath  = "POKE_API_PATH"
)

// Keys lists every key read from the environment layer.
var Keys = []string{
	KeyPingResponse,
	KeyPokeAPIHost,
	KeyPokeAPIPort,
	KeyPokeAPIPath,
}
