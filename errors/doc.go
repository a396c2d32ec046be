// Package errors provides the error taxonomy used across varflow.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// machine-readable code. Use IsCode to test for a code anywhere in a chain,
// joined run errors included.
package errors
