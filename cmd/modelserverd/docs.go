package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           modelserverd API
// @version         1.0
// @description     Stateful inference serving engine: KServe v2 and TensorFlow Serving v1 REST surfaces over a sequence-aware model runtime.
//
// @contact.name   modelserverd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
