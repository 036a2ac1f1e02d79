package session

import (
	"encoding/json"
	"fmt"

	"github.com/oxbowlabs/vantage/internal/models"
)

// stealthScript suppresses the obvious automation tells chromedp leaves in
// the page environment. It runs before any site script.
const stealthScript = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	if (window.chrome === undefined) {
		window.chrome = { runtime: {} };
	}
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters)
	);
})();`

// fingerprintScript builds the per-account override script from the
// account's profile. Values are JSON-encoded so account IDs and catalogue
// entries can never break out of the script.
func fingerprintScript(fp *models.FingerprintProfile) string {
	languages := []string{fp.Locale, "en"}
	if fp.Locale == "en" {
		languages = []string{"en"}
	}

	return fmt.Sprintf(`(() => {
	Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
	Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
	Object.defineProperty(navigator, 'language', { get: () => %s });
	Object.defineProperty(navigator, 'languages', { get: () => %s });
	Object.defineProperty(navigator, 'plugins', { get: () => ({ length: %d }) });
	Object.defineProperty(screen, 'width', { get: () => %d });
	Object.defineProperty(screen, 'height', { get: () => %d });
	Object.defineProperty(screen, 'colorDepth', { get: () => %d });
	Object.defineProperty(window, 'devicePixelRatio', { get: () => %s });

	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function (parameter) {
		if (parameter === 37445) { return %s; }
		if (parameter === 37446) { return %s; }
		return getParameter.call(this, parameter);
	};

	const noise = %s;
	const toDataURL = HTMLCanvasElement.prototype.toDataURL;
	HTMLCanvasElement.prototype.toDataURL = function (...args) {
		const ctx = this.getContext('2d');
		if (ctx && this.width > 0 && this.height > 0) {
			const imageData = ctx.getImageData(0, 0, this.width, this.height);
			for (let i = 0; i < imageData.data.length; i += 4) {
				imageData.data[i] = imageData.data[i] + Math.floor(noise * 255 * ((i %% 7) - 3));
			}
			ctx.putImageData(imageData, 0, 0);
		}
		return toDataURL.apply(this, args);
	};

	const audioNoise = %s;
	const getChannelData = AudioBuffer.prototype.getChannelData;
	AudioBuffer.prototype.getChannelData = function (...args) {
		const data = getChannelData.apply(this, args);
		for (let i = 0; i < data.length; i += 100) {
			data[i] = data[i] + audioNoise;
		}
		return data;
	};
})();`,
		fp.Hardware.Cores,
		fp.Hardware.MemoryGB,
		jsString(fp.Locale),
		jsValue(languages),
		fp.PluginCount,
		fp.Screen.Width,
		fp.Screen.Height,
		fp.Screen.ColorDepth,
		jsValue(fp.Screen.PixelRatio),
		jsString(fp.WebGL.Vendor),
		jsString(fp.WebGL.Renderer),
		jsValue(fp.CanvasNoise),
		jsValue(fp.AudioNoise),
	)
}

func jsString(s string) string {
	return jsValue(s)
}

func jsValue(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
