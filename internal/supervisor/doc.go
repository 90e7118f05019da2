// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package supervisor provides process supervision for Guardian using suture v4.

# Overview

Long-running services are organized into three layers:

	RootSupervisor ("guardian")
	├── DeliverySupervisor ("delivery-layer")
	│   ├── journal.Recorder (if journal.enabled)
	│   └── eventprocessor.Forwarder (if nats.enabled, build tag: nats)
	├── PipelineSupervisor ("pipeline-layer")
	│   └── services.PipelineService
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

Delivery subscribers that fail (for example after a lag disconnect) are
restarted with a new subscription. The pipeline is started before the tree
runs and is never restarted: when capture ends or fails it returns
suture.ErrTerminateSupervisorTree and the process exits.

# Shutdown

Cancelling the context passed to Serve stops every layer. The pipeline closes
the alert bus as part of its own ordered shutdown, which ends WebSocket
sessions and the delivery subscribers. ShutdownTimeout must therefore exceed
the pipeline grace period, or suture abandons the pipeline mid-drain and
reports it in UnstoppedServiceReport.

# Logging

Supervisor events go through sutureslog to an *slog.Logger. Use
logging.NewSlogLogger so they reach the zerolog global logger with the rest
of the application's output.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDeliveryService(recorder)
	tree.AddPipelineService(services.NewPipelineService(p, onStop))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
