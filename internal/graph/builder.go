package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/skiffhq/skiff/internal/config"
)

// ProviderDisabledError is returned when the resolved configuration asks
// for a resource on a provider the environment has not enabled.
type ProviderDisabledError struct {
	Resource string
	Provider string
}

func (e *ProviderDisabledError) Error() string {
	return fmt.Sprintf("resource %q requires provider %q, which is not enabled for this environment", e.Resource, e.Provider)
}

// Build computes the deployment plan for one environment from its
// resolved configuration. Each enabled capability flag becomes a spec;
// dependsOn edges are wired wherever a resource consumes another
// resource's output (the backend needs the database connection string,
// the frontend needs the backend URL). The result is topologically
// sorted with a lexicographic tie-break, so identical input always
// yields an identical plan.
func Build(env config.Environment, resolved map[string]config.Entry) (*Plan, error) {
	b := &builder{env: env, resolved: resolved}

	b.database()
	b.cache()
	b.backend()
	b.frontend()
	b.worker()
	if err := b.extraDependencies(); err != nil {
		return nil, err
	}
	b.secretBindings()

	for _, s := range b.specs {
		if !b.providerEnabled(s.Provider) {
			return nil, &ProviderDisabledError{Resource: s.ID, Provider: s.Provider}
		}
	}

	ordered, err := topoSort(b.specs)
	if err != nil {
		return nil, err
	}
	return &Plan{Environment: env.Name, Specs: ordered}, nil
}

type builder struct {
	env      config.Environment
	resolved map[string]config.Entry
	specs    []Spec
}

func (b *builder) value(key string) string {
	return b.resolved[key].Value
}

func (b *builder) flag(key string) bool {
	return b.resolved[key].Bool()
}

func (b *builder) providerEnabled(name string) bool {
	for _, p := range b.env.Providers {
		if p == name {
			return true
		}
	}
	return false
}

func (b *builder) has(id string) bool {
	for _, s := range b.specs {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (b *builder) database() {
	if !b.flag("postgres") {
		return
	}
	b.specs = append(b.specs, Spec{
		ID:       "postgres",
		Kind:     Database,
		Provider: b.value("databaseProvider"),
		Properties: map[string]string{
			"engine":        "postgres",
			"engineVersion": b.value("postgresVersion"),
			"tier":          b.value("postgresTier"),
		},
	})
}

func (b *builder) cache() {
	if !b.flag("redis") {
		return
	}
	b.specs = append(b.specs, Spec{
		ID:       "redis",
		Kind:     Cache,
		Provider: b.value("cacheProvider"),
		Properties: map[string]string{
			"engine":        "redis",
			"engineVersion": b.value("redisVersion"),
		},
	})
}

func (b *builder) backend() {
	if b.value("backendTech") == "" {
		return
	}
	spec := Spec{
		ID:         "backend",
		Kind:       Compute,
		Provider:   b.value("backendProvider"),
		Properties: b.computeProperties(b.value("backendTech"), b.value("backendImage")),
	}
	// The backend consumes the database connection string and cache URL.
	if b.has("postgres") {
		spec.DependsOn = append(spec.DependsOn, "postgres")
	}
	if b.has("redis") {
		spec.DependsOn = append(spec.DependsOn, "redis")
	}
	b.specs = append(b.specs, spec)
}

func (b *builder) frontend() {
	if b.value("frontendTech") == "" {
		return
	}
	spec := Spec{
		ID:         "frontend",
		Kind:       Compute,
		Provider:   b.value("frontendProvider"),
		Properties: b.computeProperties(b.value("frontendTech"), b.value("frontendImage")),
	}
	// The frontend needs the backend's public URL at deploy time.
	if b.has("backend") {
		spec.DependsOn = append(spec.DependsOn, "backend")
	}
	b.specs = append(b.specs, spec)
}

func (b *builder) worker() {
	if !b.flag("modalApp") {
		return
	}
	spec := Spec{
		ID:         "ml-worker",
		Kind:       Compute,
		Provider:   "modal",
		Properties: b.computeProperties("modal", ""),
	}
	if b.has("postgres") {
		spec.DependsOn = append(spec.DependsOn, "postgres")
	}
	b.specs = append(b.specs, spec)
}

func (b *builder) computeProperties(tech, image string) map[string]string {
	replicas := b.resolved["replicas"].Int()
	if max := b.env.Tier.MaxReplicas; max > 0 && replicas > max {
		replicas = max
	}
	props := map[string]string{
		"tech":     tech,
		"cpu":      b.value("cpu"),
		"memory":   b.value("memory"),
		"replicas": strconv.Itoa(replicas),
		"region":   b.value("gcpRegion"),
		"public":   strconv.FormatBool(b.env.PublicByDefault() && len(b.env.AllowedUsers) == 0),
	}
	if image != "" {
		props["image"] = image
	}
	if len(b.env.AllowedUsers) > 0 {
		props["allowedUsers"] = strings.Join(b.env.AllowedUsers, ",")
	}
	return props
}

// extraDependencies applies operator-declared "from->to" edges. This is
// where misconfigured cross-references can introduce cycles; topoSort
// rejects them as a hard stop.
func (b *builder) extraDependencies() error {
	raw := strings.TrimSpace(b.value("extraDependencies"))
	if raw == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(pair), "->")
		if len(parts) != 2 {
			return fmt.Errorf("malformed extraDependencies entry %q (want from->to)", pair)
		}
		from, to := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		for i := range b.specs {
			if b.specs[i].ID == from {
				b.specs[i].DependsOn = append(b.specs[i].DependsOn, to)
			}
		}
	}
	return nil
}

// secretBindings emits one secret-binding spec per secret-consuming
// compute resource and makes the compute depend on it. The binding
// carries the barrier: secrets must be propagated to a resource's
// provider before the resource itself is applied.
func (b *builder) secretBindings() {
	secrets := config.SecretEntries(b.resolved)
	if len(secrets) == 0 {
		return
	}
	keys := make([]string, 0, len(secrets))
	for _, e := range secrets {
		keys = append(keys, e.Key)
	}

	var bindings []Spec
	for i := range b.specs {
		s := &b.specs[i]
		if s.Kind != Compute || s.ID == "frontend" {
			// The frontend is a public client; secrets never flow to it.
			continue
		}
		bindingID := s.ID + "-secrets"
		bindings = append(bindings, Spec{
			ID:       bindingID,
			Kind:     SecretBinding,
			Provider: s.Provider,
			Secrets:  keys,
			Properties: map[string]string{
				"for": s.ID,
			},
		})
		s.DependsOn = append(s.DependsOn, bindingID)
		s.Secrets = keys
		// A changed secret value must re-apply the consuming compute,
		// so its digest participates in the properties hash. Only the
		// digest: values never enter the plan.
		s.Properties["secretsFingerprint"] = secretsFingerprint(secrets)
	}
	b.specs = append(b.specs, bindings...)
}

func secretsFingerprint(entries []config.Entry) string {
	h := sha256.New()
	for _, e := range entries {
		sum := sha256.Sum256([]byte(e.Value))
		fmt.Fprintf(h, "%s=%s\n", e.Key, hex.EncodeToString(sum[:]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
