package codeinfo

import "slices"

// APIFunctions are the functions the music environment provides to scripts.
var APIFunctions = []string{
	"init", "setTempo", "finish", "fitMedia", "insertMedia", "makeBeat",
	"rhythmEffects", "setEffect", "gauss", "println", "replaceListElement",
	"replaceString", "reverseList", "reverseString", "shuffleList",
	"shuffleString", "createAudioSlice", "createAudioStretch",
	"insertMediaSection", "makeBeatSlice", "analyze", "analyzeForTime",
	"analyzeTrack", "analyzeTrackForTime", "dur", "readInput",
	"multiChoiceInput", "importImage", "importFile", "selectRandomFile",
}

// PythonKeywords are reserved words checked for typos in Python scripts.
var PythonKeywords = []string{
	"and", "as", "assert", "break", "del", "elif", "class", "continue", "def",
	"else", "except", "exec", "finally", "for", "from", "global", "if", "import",
	"in", "is", "lambda", "not", "or", "pass", "print", "raise", "return", "try",
	"while", "with", "yield",
}

// JavaScriptKeywords are reserved words checked for typos in JavaScript scripts.
var JavaScriptKeywords = []string{
	"and", "as", "assert", "break", "del", "else if", "continue", "function",
	"else", "except", "exec", "finally", "for", "from", "global", "if", "import",
	"in", "is", "lambda", "or", "pass", "println", "raise", "return", "try",
	"while", "with", "yield", "catch",
}

// KnownNames returns the keyword list followed by the API functions.
func KnownNames(lang Language) []string {
	keywords := PythonKeywords
	if lang == JavaScript {
		keywords = JavaScriptKeywords
	}
	return slices.Concat(keywords, APIFunctions)
}

var builtinReturns = map[string]string{
	"int": TypeInt, "float": TypeFloat, "str": TypeStr, "len": TypeInt,
	"range": TypeList, "list": TypeList, "count": TypeInt, "index": TypeInt,
	"split": TypeList, "startswith": TypeBool, "length": TypeInt, "of": TypeList,
	"every": TypeBool, "fill": TypeList, "filter": TypeList, "findIndex": TypeInt,
	"includes": TypeBool, "indexOf": TypeInt, "join": TypeStr, "keys": TypeList,
	"lastIndexOf": TypeInt, "map": TypeList, "reverse": TypeList, "some": TypeBool,
	"sort": TypeList, "splice": TypeList, "toString": TypeStr, "values": TypeList,
	"charAt": TypeStr, "endsWith": TypeBool, "startsWith": TypeBool,
	"replace": TypeStr, "substring": TypeStr, "substr": TypeStr, "slice": TypeList,
	"toLowerCase": TypeStr, "toUpperCase": TypeStr, "trim": TypeStr,
	"upper": TypeStr, "lower": TypeStr, "strip": TypeStr, "random": TypeFloat,
	"randint": TypeInt, "floor": TypeInt,

	"gauss": TypeFloat, "analyze": TypeFloat, "analyzeForTime": TypeFloat,
	"analyzeTrack": TypeFloat, "analyzeTrackForTime": TypeFloat, "dur": TypeFloat,
	"readInput": TypeStr, "multiChoiceInput": TypeInt, "replaceListElement": TypeList,
	"replaceString": TypeStr, "reverseList": TypeList, "reverseString": TypeStr,
	"shuffleList": TypeList, "shuffleString": TypeStr, "createAudioSlice": TypeSample,
	"createAudioStretch": TypeSample, "selectRandomFile": TypeSample,
	"importImage": TypeList, "importFile": TypeStr,
}

// BuiltinReturn returns the coarse return type of a builtin or API function.
func BuiltinReturn(name string) (string, bool) {
	t, ok := builtinReturns[name]
	return t, ok
}
