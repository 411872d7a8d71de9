package envfilter

import "strings"

var builtins = map[string]bool{
	"abs": true, "aiter": true, "all": true, "anext": true, "any": true,
	"ascii": true, "bin": true, "bool": true, "breakpoint": true,
	"bytearray": true, "bytes": true, "callable": true, "chr": true,
	"classmethod": true, "compile": true, "complex": true, "copyright": true,
	"credits": true, "delattr": true, "dict": true, "dir": true,
	"divmod": true, "enumerate": true, "eval": true, "exec": true,
	"exit": true, "filter": true, "float": true, "format": true,
	"frozenset": true, "getattr": true, "globals": true, "hasattr": true,
	"hash": true, "help": true, "hex": true, "id": true, "input": true,
	"int": true, "isinstance": true, "issubclass": true, "iter": true,
	"len": true, "license": true, "list": true, "locals": true, "map": true,
	"max": true, "memoryview": true, "min": true, "next": true,
	"object": true, "oct": true, "open": true, "ord": true, "pow": true,
	"print": true, "property": true, "quit": true, "range": true,
	"repr": true, "reversed": true, "round": true, "set": true,
	"setattr": true, "slice": true, "sorted": true, "staticmethod": true,
	"str": true, "sum": true, "super": true, "tuple": true, "type": true,
	"vars": true, "zip": true,
	"True": true, "False": true, "None": true, "NotImplemented": true,
	"Ellipsis": true,

	"BaseException": true, "BaseExceptionGroup": true, "Exception": true,
	"ExceptionGroup": true, "ArithmeticError": true, "AssertionError": true,
	"AttributeError": true, "BlockingIOError": true, "BrokenPipeError": true,
	"BufferError": true, "ChildProcessError": true, "ConnectionError": true,
	"ConnectionAbortedError": true, "ConnectionRefusedError": true,
	"ConnectionResetError": true, "EOFError": true, "EnvironmentError": true,
	"FileExistsError": true, "FileNotFoundError": true,
	"FloatingPointError": true, "GeneratorExit": true, "IOError": true,
	"ImportError": true, "IndentationError": true, "IndexError": true,
	"InterruptedError": true, "IsADirectoryError": true, "KeyError": true,
	"KeyboardInterrupt": true, "LookupError": true, "MemoryError": true,
	"ModuleNotFoundError": true, "NameError": true,
	"NotADirectoryError": true, "NotImplementedError": true, "OSError": true,
	"OverflowError": true, "PermissionError": true, "ProcessLookupError": true,
	"RecursionError": true, "ReferenceError": true, "RuntimeError": true,
	"StopAsyncIteration": true, "StopIteration": true, "SyntaxError": true,
	"SystemError": true, "SystemExit": true, "TabError": true,
	"TimeoutError": true, "TypeError": true, "UnboundLocalError": true,
	"UnicodeDecodeError": true, "UnicodeEncodeError": true,
	"UnicodeError": true, "UnicodeTranslateError": true, "ValueError": true,
	"ZeroDivisionError": true,

	"Warning": true, "BytesWarning": true, "DeprecationWarning": true,
	"EncodingWarning": true, "FutureWarning": true, "ImportWarning": true,
	"PendingDeprecationWarning": true, "ResourceWarning": true,
	"RuntimeWarning": true, "SyntaxWarning": true, "UnicodeWarning": true,
	"UserWarning": true,
}

// IsBuiltin reports whether name is a Python built-in identifier. Dunder
// names such as __name__ and __file__ count as built-in.
func IsBuiltin(name string) bool {
	if len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return builtins[name]
}
