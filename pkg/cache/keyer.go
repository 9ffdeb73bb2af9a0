package cache

// Keyer builds cache keys. Implementations must include every input that
// changes the cached value.
type Keyer interface {
	// ChannelKey addresses an optimized channel program.
	ChannelKey(maskHash string, opts ChannelKeyOpts) string

	// RunKey addresses a combined program built from channel keys.
	RunKey(channelKeys []string, opts RunKeyOpts) string
}

// ChannelKeyOpts lists the options that affect a channel program.
type ChannelKeyOpts struct {
	Channel       string  `json:"channel"`
	Strategy      string  `json:"strategy"`
	Threshold     uint8   `json:"threshold"`
	Radius        float64 `json:"radius"`
	Step          int     `json:"step"`
	EdgeDetect    bool    `json:"edge_detect"`
	Smooth        bool    `json:"smooth"`
	Scale         float64 `json:"scale"`
	Epsilon       float64 `json:"epsilon"`
	Merge         float64 `json:"merge"`
	Backend       string  `json:"backend"`
	SkipOptimize  bool    `json:"skip_optimize"`
	Unoptimized   bool    `json:"unoptimized"`
	LiftThreshold float64 `json:"lift_threshold"`
}

// RunKeyOpts lists the sequencing options that affect a combined program.
type RunKeyOpts struct {
	Holders  map[string]float64 `json:"holders"`
	HolderY  float64            `json:"holder_y"`
	Disabled []string           `json:"disabled"`
	PenUp    float64            `json:"pen_up"`
	PenDown  float64            `json:"pen_down"`
	Feed     float64            `json:"feed"`
}

// DefaultKeyer hashes options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ChannelKey returns "channel:<sha256>".
func (k *DefaultKeyer) ChannelKey(maskHash string, opts ChannelKeyOpts) string {
	return hashKey("channel", maskHash, opts)
}

// RunKey returns "run:<sha256>".
func (k *DefaultKeyer) RunKey(channelKeys []string, opts RunKeyOpts) string {
	return hashKey("run", channelKeys, opts)
}

var _ Keyer = (*DefaultKeyer)(nil)
