package metrics

import "time"

func (r *Registry) RecordRun(topology, status string, nodes, steps, samples int, duration time.Duration) {
	r.RunsTotal.WithLabelValues(topology, status).Inc()
	r.RunDuration.WithLabelValues(topology).Observe(duration.Seconds())
	r.StepsTotal.WithLabelValues(topology).Add(float64(steps))
	r.SamplesTotal.WithLabelValues(topology).Add(float64(samples))
	r.LatticeNodes.Set(float64(nodes))
}

func (r *Registry) RecordDivergence(topology string) {
	r.DivergencesTotal.WithLabelValues(topology).Inc()
}

func (r *Registry) RecordSpikes(topology, rule string, spikes int) {
	r.SpikesTotal.WithLabelValues(topology, rule).Add(float64(spikes))
}

func (r *Registry) RecordStoreOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.StoreOperations.WithLabelValues(operation, status).Inc()
}

func (r *Registry) RecordPublish(err error) {
	if err != nil {
		r.PublishFailures.Inc()
		return
	}
	r.PublishedSamples.Inc()
}
