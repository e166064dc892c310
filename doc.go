// Package fable provides an embeddable narrative-scripting runtime.
//
// The engine is in package 'core', the script AST in 'script', and
// some command-line tools are in `cmd`.
//
// See https://github.com/fable-lang/fable/blob/master/README.md for more.
package fable
