// Package tgui builds message text for Telegram's HTML parse mode.
// Helpers escape their input, so values of type H are safe to send as is.
package tgui
