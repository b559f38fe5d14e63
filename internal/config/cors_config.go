package config

import "strings"

const corsOriginVar = "CORS_ORIGIN"

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// Local development front-ends are always allowed.
var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// GetAllowedOrigins combines the development origins with the comma separated
// CORS_ORIGIN list.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range defaultOrigins {
		origins[o] = nullValue{}
	}
	for _, o := range strings.Split(GetEnv(corsOriginVar, ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
