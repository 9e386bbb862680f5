// Package log defines the Logger interface the engine components accept,
// with a stdlib-backed default and a kataras/golog adapter. Components take
// a Logger explicitly; nothing in this module logs through a hidden global.
package log
