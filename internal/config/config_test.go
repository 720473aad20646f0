package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  rest_port: 9000
  mirror_world: true
admin:
  username: ops
  jwt_secret: s3cret
eventbus:
  url: nats://localhost:4222
  stream: GUARD
storage:
  data_path: /tmp/worlds
  autosave_seconds: 30
logging:
  level: warn
  components:
    guard: debug
webhooks:
  - name: audit
    url: http://hooks.local/veto
    events: [Veto]
    retry_count: 2
worlds:
  world:
    sponge_radius: 2
    simulate_sponge: true
    redstone_sponges: true
    disable_fire_spread: true
    use_regions: false
    prevent_water_damage: [torch, "55"]
    allowed_lava_spread_over: [stone]
    blacklist:
      - action: place
        blocks: [tnt]
        ignore: [admin]
        log: true
    regions:
      - id: spawn
        min: {x: 10, y: 0, z: 10}
        max: {x: -10, y: 128, z: -10}
        priority: 5
        owners: [alice]
        flags:
          pistons: deny
          build: allow
  nether: {}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
	assert.True(t, cfg.Server.MirrorWorld)
	assert.Equal(t, "ops", cfg.Admin.Username)
	assert.Equal(t, "s3cret", cfg.Admin.GetJWTSecret())
	assert.Equal(t, "GUARD", cfg.EventBus.Stream)
	assert.Equal(t, 30.0, cfg.Storage.GetAutosave().Seconds())
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"guard": "debug"}, cfg.Logging.Components)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"Veto"}, cfg.Webhooks[0].Events)
	assert.Equal(t, 2, cfg.Webhooks[0].RetryCount)
	assert.Len(t, cfg.Worlds, 2)
}

func TestRules(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	rules, err := cfg.Rules()
	require.NoError(t, err)

	w := rules.Policies["world"]
	require.NotNil(t, w)
	assert.Equal(t, "world", w.Name)
	assert.Equal(t, 2, w.SpongeRadius)
	assert.True(t, w.SimulateSponge)
	assert.True(t, w.DisableFireSpread)
	assert.False(t, w.UseRegions)
	assert.True(t, w.ItemDurability)
	assert.Equal(t, []block.ID{block.Torch, block.RedstoneWire}, w.PreventWaterDamage.Slice())
	assert.True(t, w.AllowedLavaSpreadOver.Contains(block.Stone))

	// Пустой мир получает значения по умолчанию
	assert.Equal(t, policy.Defaults("nether"), rules.Policies["nether"])

	require.Len(t, rules.Regions["world"], 1)
	spawn := rules.Regions["world"][0]
	assert.Equal(t, vec.Vec3{X: -10, Y: 0, Z: -10}, spawn.Min)
	assert.Equal(t, 5, spawn.Priority)
	assert.Equal(t, region.Deny, spawn.Flags[region.FlagPistons])
	assert.Equal(t, region.Allow, spawn.Flags[region.FlagBuild])
	assert.Empty(t, rules.Regions["nether"])

	list := rules.Blacklists["world"]
	require.NotNil(t, list)
	ok, err := list.Check(blacklist.Event{Actor: "bob", World: "world", TypeID: block.TNT, Kind: blacklist.KindPlace})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = list.Check(blacklist.Event{Actor: "admin", World: "world", TypeID: block.TNT, Kind: blacklist.KindPlace})
	require.NoError(t, err)
	assert.True(t, ok)
	_, exists := rules.Blacklists["nether"]
	assert.False(t, exists)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative radius": "worlds:\n  w:\n    sponge_radius: -1\n",
		"unknown block":   "worlds:\n  w:\n    prevent_water_damage: [unobtainium]\n",
		"unknown action":  "worlds:\n  w:\n    blacklist:\n      - action: explode\n        blocks: [tnt]\n",
		"unknown flag":    "worlds:\n  w:\n    regions:\n      - id: r\n        flags: {teleport: deny}\n",
		"bad flag state":  "worlds:\n  w:\n    regions:\n      - id: r\n        flags: {build: maybe}\n",
		"region id":       "worlds:\n  w:\n    regions:\n      - priority: 1\n",
		"yaml":            "worlds: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "blockguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	t.Setenv(EnvConfigPath, path)
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.Admin.Username)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	var s ServerConfig
	t.Setenv("BLOCKGUARD_REST_PORT", "")
	assert.Equal(t, 8088, s.GetRESTPort())

	t.Setenv("BLOCKGUARD_REST_PORT", "9100")
	assert.Equal(t, 9100, s.GetRESTPort())

	t.Setenv("BLOCKGUARD_METRICS_PORT", "oops")
	assert.Equal(t, 2112, s.GetMetricsPort())

	s.RESTPort = 7000
	assert.Equal(t, 7000, s.GetRESTPort())
}
