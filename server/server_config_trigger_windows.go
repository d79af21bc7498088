package server

func registerPrintConfigurationTrigger(_ *Server) {}
