package fingerprint

// Fixed catalogues the deterministic generator samples from. Entries are
// deliberately common real-world configurations; rare combinations are a
// detection signal in themselves.

var userAgentTemplates = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
}

var chromeMajorVersions = []int{124, 125, 126, 127}

type screenPreset struct {
	Width      int
	Height     int
	ColorDepth int
	PixelRatio float64
}

var screenPresets = []screenPreset{
	{1920, 1080, 24, 1.0},
	{2560, 1440, 24, 1.25},
	{1536, 864, 24, 1.25},
	{1366, 768, 24, 1.0},
}

type viewportPreset struct {
	Width  int
	Height int
}

var viewportPresets = []viewportPreset{
	{1920, 969},
	{1536, 746},
	{1366, 657},
	{1440, 789},
}

type gpuPreset struct {
	Vendor   string
	Renderer string
}

var gpuPresets = []gpuPreset{
	{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
	{"Google Inc. (NVIDIA)", "ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
	{"Google Inc. (AMD)", "ANGLE (AMD, AMD Radeon RX 580 Direct3D11 vs_5_0 ps_5_0, D3D11)"},
	{"Google Inc. (Intel)", "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)"},
}

var corePresets = []int{4, 6, 8, 12}

var memoryPresets = []int{8, 16, 32}

type localePreset struct {
	Locale   string
	Timezone string
}

var localePresets = []localePreset{
	{"en-US", "America/New_York"},
	{"en-US", "America/Los_Angeles"},
	{"en-GB", "Europe/London"},
	{"en-AU", "Australia/Sydney"},
}

var fontSets = [][]string{
	{"Arial", "Calibri", "Cambria", "Consolas", "Georgia", "Segoe UI", "Tahoma", "Times New Roman", "Verdana"},
	{"Arial", "Avenir", "Helvetica", "Helvetica Neue", "Menlo", "Monaco", "San Francisco", "Times New Roman"},
	{"Arial", "DejaVu Sans", "DejaVu Serif", "Liberation Mono", "Liberation Sans", "Noto Sans", "Ubuntu"},
}

var pluginCounts = []int{3, 4, 5}
