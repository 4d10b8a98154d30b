package main

//go:generate swag init -g cmd/insiderbot/main.go -o docs

// @title           Insider Bot API
// @version         0.1.0
// @description     Form 4 insider purchase scores, trades, risk settings and operator controls.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
