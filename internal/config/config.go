package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/blockguard/internal/blacklist"
	"github.com/annel0/blockguard/internal/policy"
	"github.com/annel0/blockguard/internal/region"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath задаёт переменную окружения с путём к конфигурации
const EnvConfigPath = "BLOCKGUARD_CONFIG"

// Config корневая структура конфигурации сервиса
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Admin     AdminConfig            `yaml:"admin"`
	EventBus  EventBusConfig         `yaml:"eventbus"`
	Storage   StorageConfig          `yaml:"storage"`
	State     StateConfig            `yaml:"state"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
	Logging   LoggingConfig          `yaml:"logging"`
	Webhooks  []WebhookConfig        `yaml:"webhooks"`
	Worlds    map[string]WorldConfig `yaml:"worlds"`
}

type ServerConfig struct {
	RESTPort     int    `yaml:"rest_port"`
	MetricsPort  int    `yaml:"metrics_port"`
	MirrorWorld  bool   `yaml:"mirror_world"`
	BridgeSecret string `yaml:"bridge_secret"` // HMAC-подпись запросов хоста, пустая строка отключает проверку
	VetoLogSize  int    `yaml:"veto_log_size"`
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	JWTSecret    string `yaml:"jwt_secret"`
	TokenTTL     int    `yaml:"token_ttl_minutes"`
}

type EventBusConfig struct {
	URL        string `yaml:"url"` // Пустой URL: шина в памяти
	Stream     string `yaml:"stream"`
	Retention  int    `yaml:"retention_hours"`
	BufferSize int    `yaml:"buffer_size"`
}

type StorageConfig struct {
	DataPath        string `yaml:"data_path"` // Без пути миры не сохраняются
	AutosaveSeconds int    `yaml:"autosave_seconds"`
}

type StateConfig struct {
	RedisURL string `yaml:"redis_url"` // Без Redis переключатели живут в памяти
	Key      string `yaml:"key"`
	Channel  string `yaml:"channel"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// LoggingConfig задаёт уровни консольных логов.
// Флаг -log-level имеет приоритет над Level.
type LoggingConfig struct {
	Level      string            `yaml:"level"`
	Components map[string]string `yaml:"components"` // guard: debug, api: warn
}

// WebhookConfig описывает исходящий webhook для записей аудита
type WebhookConfig struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	Secret     string   `yaml:"secret"`
	Events     []string `yaml:"events"` // Veto, Sponge, Toggle или "*"
	Timeout    int      `yaml:"timeout_seconds"`
	RetryCount int      `yaml:"retry_count"`
}

// GetRESTPort возвращает порт REST API с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKGUARD_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт метрик Prometheus с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BLOCKGUARD_METRICS_PORT", 2112)
}

// GetJWTSecret возвращает секрет подписи токенов: config -> env
func (a *AdminConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("BLOCKGUARD_JWT_SECRET")
}

// GetTokenTTL возвращает время жизни токена администратора
func (a *AdminConfig) GetTokenTTL() time.Duration {
	if a.TokenTTL <= 0 {
		return time.Hour
	}
	return time.Duration(a.TokenTTL) * time.Minute
}

// GetAutosave возвращает период автосохранения миров
func (s *StorageConfig) GetAutosave() time.Duration {
	if s.AutosaveSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.AutosaveSeconds) * time.Second
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Default возвращает конфигурацию без файла: шина и переключатели в памяти, миров нет
func Default() *Config {
	return &Config{
		Admin:  AdminConfig{Username: "admin"},
		Worlds: make(map[string]WorldConfig),
	}
}

// Load читает YAML файл конфигурации.
// Если path == "", берёт путь из BLOCKGUARD_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает конфигурацию из YAML и проверяет миры
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Worlds == nil {
		cfg.Worlds = make(map[string]WorldConfig)
	}
	if _, err := cfg.Rules(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WorldConfig содержит настройки одного мира в YAML. Поля с указателями
// отличают «не задано» от false/0, чтобы сохранить значения по умолчанию.
type WorldConfig struct {
	SpongeRadius    *int `yaml:"sponge_radius"`
	RedstoneSponges bool `yaml:"redstone_sponges"`
	SimulateSponge  bool `yaml:"simulate_sponge"`

	DisableFireSpread     bool `yaml:"disable_fire_spread"`
	DisableLeafDecay      bool `yaml:"disable_leaf_decay"`
	DisableIceFormation   bool `yaml:"disable_ice_formation"`
	DisableSnowFormation  bool `yaml:"disable_snow_formation"`
	DisableMushroomSpread bool `yaml:"disable_mushroom_spread"`
	DisableIceMelting     bool `yaml:"disable_ice_melting"`
	DisableSnowMelting    bool `yaml:"disable_snow_melting"`

	NoPhysicsGravel     bool `yaml:"no_physics_gravel"`
	NoPhysicsSand       bool `yaml:"no_physics_sand"`
	AllowPortalAnywhere bool `yaml:"allow_portal_anywhere"`

	PreventLightningFire bool `yaml:"prevent_lightning_fire"`
	PreventLavaFire      bool `yaml:"prevent_lava_fire"`
	BlockLighter         bool `yaml:"block_lighter"`

	PreventWaterDamage      []string `yaml:"prevent_water_damage"`
	AllowedLavaSpreadOver   []string `yaml:"allowed_lava_spread_over"`
	DisableFireSpreadBlocks []string `yaml:"disable_fire_spread_blocks"`

	UseRegions    *bool `yaml:"use_regions"`
	HighFreqFlags bool  `yaml:"high_freq_flags"`

	ItemDurability      *bool `yaml:"item_durability"`
	SignChestProtection bool  `yaml:"sign_chest_protection"`

	Blacklist []BlacklistRule `yaml:"blacklist"`
	Regions   []RegionConfig  `yaml:"regions"`
}

// BlacklistRule описывает правило чёрного списка мира
type BlacklistRule struct {
	Action string   `yaml:"action"` // break, place, destroy-with
	Blocks []string `yaml:"blocks"` // Имена или числовые ID
	Ignore []string `yaml:"ignore"`
	Log    bool     `yaml:"log"`
}

// RegionConfig описывает регион мира
type RegionConfig struct {
	ID       string            `yaml:"id"`
	Min      vec.Vec3          `yaml:"min"`
	Max      vec.Vec3          `yaml:"max"`
	Priority int               `yaml:"priority"`
	Owners   []string          `yaml:"owners"`
	Members  []string          `yaml:"members"`
	Flags    map[string]string `yaml:"flags"` // флаг -> allow | deny
}

// Policy строит снимок политики мира
func (w WorldConfig) Policy(name string) (*policy.World, error) {
	p := policy.Defaults(name)
	if w.SpongeRadius != nil {
		p.SpongeRadius = *w.SpongeRadius
	}
	if w.UseRegions != nil {
		p.UseRegions = *w.UseRegions
	}
	if w.ItemDurability != nil {
		p.ItemDurability = *w.ItemDurability
	}
	p.RedstoneSponges = w.RedstoneSponges
	p.SimulateSponge = w.SimulateSponge
	p.DisableFireSpread = w.DisableFireSpread
	p.DisableLeafDecay = w.DisableLeafDecay
	p.DisableIceFormation = w.DisableIceFormation
	p.DisableSnowFormation = w.DisableSnowFormation
	p.DisableMushroomSpread = w.DisableMushroomSpread
	p.DisableIceMelting = w.DisableIceMelting
	p.DisableSnowMelting = w.DisableSnowMelting
	p.NoPhysicsGravel = w.NoPhysicsGravel
	p.NoPhysicsSand = w.NoPhysicsSand
	p.AllowPortalAnywhere = w.AllowPortalAnywhere
	p.PreventLightningFire = w.PreventLightningFire
	p.PreventLavaFire = w.PreventLavaFire
	p.BlockLighter = w.BlockLighter
	p.HighFreqFlags = w.HighFreqFlags
	p.SignChestProtection = w.SignChestProtection

	var err error
	if p.PreventWaterDamage, err = parseIDSet(w.PreventWaterDamage); err != nil {
		return nil, fmt.Errorf("world %s: prevent_water_damage: %w", name, err)
	}
	if p.AllowedLavaSpreadOver, err = parseIDSet(w.AllowedLavaSpreadOver); err != nil {
		return nil, fmt.Errorf("world %s: allowed_lava_spread_over: %w", name, err)
	}
	if p.DisableFireSpreadBlocks, err = parseIDSet(w.DisableFireSpreadBlocks); err != nil {
		return nil, fmt.Errorf("world %s: disable_fire_spread_blocks: %w", name, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("world %s: %w", name, err)
	}
	return p, nil
}

// BuildBlacklist строит чёрный список мира; nil, если правил нет
func (w WorldConfig) BuildBlacklist() (*blacklist.List, error) {
	if len(w.Blacklist) == 0 {
		return nil, nil
	}
	rules := make([]blacklist.Rule, 0, len(w.Blacklist))
	for i, r := range w.Blacklist {
		kind, err := blacklist.ParseKind(r.Action)
		if err != nil {
			return nil, fmt.Errorf("blacklist rule %d: %w", i, err)
		}
		ids, err := parseIDs(r.Blocks)
		if err != nil {
			return nil, fmt.Errorf("blacklist rule %d: %w", i, err)
		}
		rules = append(rules, blacklist.Rule{Kind: kind, IDs: ids, Ignore: r.Ignore, Log: r.Log})
	}
	return blacklist.NewList(rules)
}

// BuildRegions строит регионы мира
func (w WorldConfig) BuildRegions() ([]*region.Region, error) {
	out := make([]*region.Region, 0, len(w.Regions))
	for _, rc := range w.Regions {
		if rc.ID == "" {
			return nil, errors.New("region without id")
		}
		r := region.New(rc.ID, rc.Min, rc.Max)
		r.Priority = rc.Priority
		r.Owners = rc.Owners
		r.Members = rc.Members
		for name, value := range rc.Flags {
			flag, err := region.ParseFlag(name)
			if err != nil {
				return nil, fmt.Errorf("region %s: %w", rc.ID, err)
			}
			state, err := region.ParseState(value)
			if err != nil {
				return nil, fmt.Errorf("region %s flag %s: %w", rc.ID, name, err)
			}
			r.SetFlag(flag, state)
		}
		out = append(out, r)
	}
	return out, nil
}

// Rules содержит всё, что конфигурация задаёт для конвейера
type Rules struct {
	Policies   map[string]*policy.World
	Regions    map[string][]*region.Region
	Blacklists map[string]*blacklist.List
}

// Rules строит политики, регионы и чёрные списки всех миров
func (c *Config) Rules() (*Rules, error) {
	rules := &Rules{
		Policies:   make(map[string]*policy.World, len(c.Worlds)),
		Regions:    make(map[string][]*region.Region, len(c.Worlds)),
		Blacklists: make(map[string]*blacklist.List),
	}
	for name, wc := range c.Worlds {
		p, err := wc.Policy(name)
		if err != nil {
			return nil, err
		}
		rules.Policies[name] = p

		regions, err := wc.BuildRegions()
		if err != nil {
			return nil, fmt.Errorf("world %s: %w", name, err)
		}
		rules.Regions[name] = regions

		list, err := wc.BuildBlacklist()
		if err != nil {
			return nil, fmt.Errorf("world %s: %w", name, err)
		}
		if list != nil {
			rules.Blacklists[name] = list
		}
	}
	return rules, nil
}

func parseIDs(names []string) ([]block.ID, error) {
	ids := make([]block.ID, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		id, err := block.Parse(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseIDSet(names []string) (policy.IDSet, error) {
	ids, err := parseIDs(names)
	if err != nil {
		return nil, err
	}
	return policy.NewIDSet(ids...), nil
}
