package config

// Built-in defaults, lowest precedence in resolution. Each default also
// declares the type that presets and overrides must keep.
var builtinDefaults = map[string]Entry{
	// Compute defaults
	"cpu":      {Key: "cpu", Value: "1", Type: StringType, Classification: Plain},
	"memory":   {Key: "memory", Value: "512Mi", Type: StringType, Classification: Plain},
	"replicas": {Key: "replicas", Value: "1", Type: IntType, Classification: Plain},

	// Database defaults
	"postgres":        {Key: "postgres", Value: "false", Type: BoolType, Classification: Plain},
	"postgresVersion": {Key: "postgresVersion", Value: "16", Type: StringType, Classification: Plain},
	"postgresTier":    {Key: "postgresTier", Value: "starter", Type: StringType, Classification: Plain},

	// Cache defaults
	"redis":        {Key: "redis", Value: "false", Type: BoolType, Classification: Plain},
	"redisVersion": {Key: "redisVersion", Value: "7", Type: StringType, Classification: Plain},

	// Placement defaults
	"gcpRegion": {Key: "gcpRegion", Value: "us-central1", Type: StringType, Classification: Plain},

	// Provider selection per resource family
	"frontendProvider": {Key: "frontendProvider", Value: "railway", Type: StringType, Classification: Plain},
	"backendProvider":  {Key: "backendProvider", Value: "gcp", Type: StringType, Classification: Plain},
	"databaseProvider": {Key: "databaseProvider", Value: "railway", Type: StringType, Classification: Plain},
	"cacheProvider":    {Key: "cacheProvider", Value: "railway", Type: StringType, Classification: Plain},

	// Extra dependsOn edges, "from->to" pairs separated by commas.
	// Escape hatch for cross-references the builder cannot infer.
	"extraDependencies": {Key: "extraDependencies", Value: "", Type: StringType, Classification: Plain},

	// Capability flags. Empty means the capability is disabled.
	"frontendTech": {Key: "frontendTech", Value: "", Type: StringType, Classification: Plain},
	"backendTech":  {Key: "backendTech", Value: "", Type: StringType, Classification: Plain},
	"modalApp":     {Key: "modalApp", Value: "false", Type: BoolType, Classification: Plain},

	// Image references. Resolved per environment by CI before deploy.
	"frontendImage": {Key: "frontendImage", Value: "", Type: StringType, Classification: Plain},
	"backendImage":  {Key: "backendImage", Value: "", Type: StringType, Classification: Plain},
}

// secretKeys are keys whose values are always secret-classified regardless
// of where they were set. Admin overrides may additionally mark any key
// secret at set time.
var secretKeys = map[string]bool{
	"databaseUrl":   true,
	"redisUrl":      true,
	"apiKey":        true,
	"jwtSecret":     true,
	"webhookSecret": true,
}

// IsSecretKey reports whether a key is always secret-classified.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
