// Package service provides the business logic layer for the minecart simulator.
//
// The service package implements:
//   - Multi-session simulation management
//   - Tick and run orchestration with optional journaling
//   - Paginated tick history
//
// Core Interfaces:
//
// SimService is the main service interface providing high-level simulation
// operations. SessionManager handles session creation, retrieval and
// persistence. ConfigManager loads and validates track layouts. TickJournal
// receives every executed tick report when configured.
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and the
// engine. Each session owns its own engine instance, so sessions running
// different layouts never share state.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	simService := service.NewSimService(sessionMgr, configMgr,
//		service.WithJournal(journal.New("journal")))
//
//	info, err := simService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := simService.Run(ctx, info.ID, false)
//	fmt.Println(result.Answer)
package service
