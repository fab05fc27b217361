package workspace

import (
	"maps"
	"os"

	"github.com/vk/flowgrid/internal/coordinator"
)

// Credential keys understood by the worker.
const (
	KeyOpenAI      = "openaiApiKey"
	KeyStabilityAI = "stabilityaiApiKey"
	KeyReplicate   = "replicateApiKey"
)

// EnvVars maps credential keys to the environment variables they are read
// from.
var EnvVars = map[string]string{
	KeyOpenAI:      "OPENAI_API_KEY",
	KeyStabilityAI: "STABILITYAI_API_KEY",
	KeyReplicate:   "REPLICATE_API_KEY",
}

// EnvCredentials reads credentials from the environment. Unset and empty
// variables are skipped.
type EnvCredentials struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Credentials implements coordinator.CredentialSource.
func (e EnvCredentials) Credentials() map[string]string {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := make(map[string]string, len(EnvVars))
	for key, env := range EnvVars {
		if v, ok := lookup(env); ok && v != "" {
			out[key] = v
		}
	}
	return out
}

// Merge combines sources; later sources win on key conflicts.
func Merge(sources ...coordinator.CredentialSource) coordinator.CredentialSource {
	return coordinator.CredentialsFunc(func() map[string]string {
		out := map[string]string{}
		for _, src := range sources {
			if src == nil {
				continue
			}
			maps.Copy(out, src.Credentials())
		}
		return out
	})
}
