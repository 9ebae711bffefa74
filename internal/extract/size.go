package extract

// Allocation bounds for the decompressed payload.
const (
	MaxSafeSize  = 256 * 1024 * 1024
	FallbackSize = 8 * 1024 * 1024
)

// sizePolicy is evaluated in order; the first rule that applies wins.
// The header hint may exceed the library's estimate because the library
// has been seen to under-report.
var sizePolicy = []func(header, api int) (int, bool){
	func(header, api int) (int, bool) {
		return max(header, api), plausible(api) && plausible(header)
	},
	func(header, api int) (int, bool) { return api, plausible(api) },
	func(header, api int) (int, bool) { return header, plausible(header) },
}

// ChooseOutputSize reconciles the header's declared size with the size
// reported by the native library. It never fails: when neither hint is
// plausible it returns FallbackSize.
func ChooseOutputSize(headerHint, apiHint int) int {
	for _, rule := range sizePolicy {
		if n, ok := rule(headerHint, apiHint); ok {
			return n
		}
	}
	return FallbackSize
}

func plausible(n int) bool {
	return n > 0 && n <= MaxSafeSize
}

// effectiveLength is the number of decoded bytes to keep: the library's
// size estimate when it fits the buffer, otherwise the whole buffer.
func effectiveLength(apiHint, allocated int) int {
	if apiHint > 0 && apiHint <= allocated {
		return apiHint
	}
	return allocated
}
