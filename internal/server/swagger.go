package server

//go:generate swag init -g internal/server/server.go -o docs

// @title Upscan API
// @version 0.1
// @description Interactive documentation for the scanner task API.
// @BasePath /
