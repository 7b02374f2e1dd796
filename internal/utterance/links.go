package utterance

const (
	curriculumV1Errors = "/en/v1/every-error-explained-in-detail.html"
	curriculumV1Effect = "/en/v1/every-effect-explained-in-detail.html"
)

// DefaultLinks maps link labels used in authored content to curriculum pages.
var DefaultLinks = map[string]string{
	"fitMedia":  "/en/v2/getting-started.html#fitmedia",
	"setTempo":  "/en/v2/your-first-song.html#settempo",
	"variable":  "/en/v2/add-beats.html#variables",
	"variables": "/en/v2/add-beats.html#variables",
	"var":       "/en/v2/add-beats.html#variables",
	"makeBeat":  "/en/v2/add-beats.html#makebeat",

	"loop":     "/en/v2/loops-and-layers.html#forloops",
	"for loop": "/en/v2/loops-and-layers.html#forloops",
	"for":      "/en/v2/loops-and-layers.html#forloops",
	"loops":    "/en/v2/loops-and-layers.html#forloops",
	"range":    "/en/v2/loops-and-layers.html#forloops",

	"setEffect":   "/en/v2/effects-and-envelopes.html#effectsinearsketch",
	"effect ramp": "/en/v2/effects-and-envelopes.html#effectsandenvelopes",
	"function":    "/en/v2/effects-and-envelopes.html#functionsandmoreeffects",
	"functions":   "/en/v2/effects-and-envelopes.html#functionsandmoreeffects",
	"def":         "/en/v2/effects-and-envelopes.html#functionsandmoreeffects",

	"if statement":          "/en/v2/mixing-with-conditionals.html#conditionalstatements",
	"if":                    "/en/v2/mixing-with-conditionals.html#conditionalstatements",
	"conditional":           "/en/v2/mixing-with-conditionals.html#conditionalstatements",
	"conditional statement": "/en/v2/mixing-with-conditionals.html#conditionalstatements",

	"section":         "/en/v2/custom-functions.html#asongsstructure",
	"sections":        "/en/v2/custom-functions.html#asongsstructure",
	"ABA":             "/en/v1/musical-form-and-custom-functions.html#abaform",
	"custom function": "/en/v2/custom-functions.html#creatingyourcustomfunctions",
	"parameters":      "/en/v1/ch_YVIPModule4.html#_writing_custom_functions",
	"console input":   "/en/v2/get-user-input.html#userinput",
	"readInput":       "/en/v2/get-user-input.html#userinput",

	"filter":        curriculumV1Effect + "#filter",
	"FILTER":        curriculumV1Effect + "#filter",
	"FILTER_FREQ":   curriculumV1Effect + "#filter",
	"volume mixing": curriculumV1Effect + "#volume",

	"importing":          curriculumV1Errors + "#importerror",
	"indented":           curriculumV1Errors + "#indentationerror",
	"index":              curriculumV1Errors + "#indexerror",
	"name":               curriculumV1Errors + "#nameerror",
	"parse error":        curriculumV1Errors + "#parseerror",
	"syntax error":       curriculumV1Errors + "#syntaxerror",
	"type error":         curriculumV1Errors + "#typeerror",
	"function arguments": curriculumV1Errors + "#valueerror",

	"list":         "/en/v1/data-structures.html",
	"randomness":   "/en/v1/randomness.html",
	"nested loops": "/en/v1/sonification.html#nestedloops",
}
