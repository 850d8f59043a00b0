package k8s

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/metadata"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// rewatchDelay is the pause before a closed pod watch is opened again.
var rewatchDelay = time.Second

type jobHandle struct {
	logger       *slog.Logger
	helper       *KubernetesHelper
	tracker      *metadata.Tracker
	namespace    string
	name         string
	selector     string
	backoffLimit int32
	failedPods   map[string]bool
}

func (h *jobHandle) ID() string {
	return h.namespace + "/" + h.name
}

// Wait watches the run's pods until one of them decides the outcome. Each
// reopened watch first checks the job, a job that is gone or has finished
// without a deciding pod ends the run.
func (h *jobHandle) Wait(ctx context.Context) error {
	for reopened := false; ; reopened = true {
		if reopened {
			if finished, outcome := h.checkJob(ctx); finished {
				return outcome
			}
		}
		w, err := h.helper.WatchPods(ctx, h.namespace, h.selector)
		if err != nil {
			if ctx.Err() != nil {
				return h.timeout(ctx)
			}
			return classifyAPIError(err, "watch pods of job "+h.name)
		}
		finished, outcome := h.consume(ctx, w)
		w.Stop()
		if finished {
			return outcome
		}
		h.logger.Info("pod watch closed, watching again", "job", h.name)
		select {
		case <-ctx.Done():
			return h.timeout(ctx)
		case <-time.After(rewatchDelay):
		}
	}
}

func (h *jobHandle) timeout(ctx context.Context) error {
	return &engine.LaunchTimeoutError{Message: fmt.Sprintf("job %s did not finish: %v", h.name, ctx.Err())}
}

// consume reads pod events until the outcome is known or the watch closes.
func (h *jobHandle) consume(ctx context.Context, w watch.Interface) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return true, h.timeout(ctx)
		case event, ok := <-w.ResultChan():
			if !ok {
				return false, nil
			}
			switch event.Type {
			case watch.Error:
				h.logger.Warn("pod watch error", "job", h.name, "object", event.Object)
				return false, nil
			case watch.Bookmark:
				continue
			}
			pod, ok := event.Object.(*corev1.Pod)
			if !ok {
				continue
			}
			h.record(pod)
			finished, err := podOutcome(pod)
			if !finished {
				if event.Type == watch.Deleted {
					h.logger.Warn("engine pod deleted before finishing", "pod", pod.Name, "phase", pod.Status.Phase)
					if finished, outcome := h.checkJob(ctx); finished {
						return true, outcome
					}
				}
				continue
			}
			if err == nil {
				return true, nil
			}
			// only failed pods are retried by the job
			if pod.Status.Phase != corev1.PodFailed {
				return true, err
			}
			if h.failedPods[pod.Name] {
				continue
			}
			h.failedPods[pod.Name] = true
			if int32(len(h.failedPods)) <= h.backoffLimit {
				h.logger.Warn("engine pod failed, the job will retry", "pod", pod.Name, "failures", len(h.failedPods), "error", err.Error())
				continue
			}
			return true, err
		}
	}
}

// checkJob reports whether the job itself decides the run. A job that cannot
// be read for another reason is left to the pod watch.
func (h *jobHandle) checkJob(ctx context.Context) (bool, error) {
	job, err := h.helper.GetJob(ctx, h.namespace, h.name)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return true, &engine.NodeTerminatedError{Message: fmt.Sprintf("job %s was deleted before the run finished", h.name)}
		}
		if ctx.Err() != nil {
			return true, h.timeout(ctx)
		}
		h.logger.Warn("Failed to read the job", "job", h.name, "error", err.Error())
		return false, nil
	}
	if job.DeletionTimestamp != nil {
		return true, &engine.NodeTerminatedError{Message: fmt.Sprintf("job %s is being deleted", h.name)}
	}
	return jobOutcome(job)
}

// jobOutcome maps the finished conditions of a job.
func jobOutcome(job *batchv1.Job) (bool, error) {
	for _, condition := range job.Status.Conditions {
		if condition.Status != corev1.ConditionTrue {
			continue
		}
		switch condition.Type {
		case batchv1.JobComplete, batchv1.JobSuccessCriteriaMet:
			return true, nil
		case batchv1.JobFailed, batchv1.JobFailureTarget:
			message := messageOr(condition.Message, string(condition.Type))
			if condition.Reason == batchv1.JobReasonDeadlineExceeded {
				return true, &engine.LaunchTimeoutError{Message: fmt.Sprintf("job %s: %s", job.Name, message)}
			}
			return true, &engine.ProcessFailedError{Message: fmt.Sprintf("job %s: %s", job.Name, message)}
		}
	}
	return false, nil
}

func (h *jobHandle) record(pod *corev1.Pod) {
	facts := metadata.PodFacts{
		Name:  pod.Name,
		Phase: string(pod.Status.Phase),
	}
	if pod.Status.StartTime != nil {
		facts.StartTime = pod.Status.StartTime.Format(time.RFC3339)
	}
	for _, container := range pod.Spec.Containers {
		facts.Containers = append(facts.Containers, api.ContainerInfo{
			Name:    container.Name,
			Image:   container.Image,
			Command: append([]string(nil), container.Command...),
		})
	}
	if status := engineContainerStatus(pod); status != nil {
		facts.ContainerID = status.ContainerID
		facts.Restarts = status.RestartCount
		if status.State.Terminated != nil {
			exit := int(status.State.Terminated.ExitCode)
			facts.ExitStatus = &exit
		}
	}
	if err := h.tracker.RecordPod(facts); err != nil {
		h.logger.Warn("Failed to record the pod metadata", "pod", pod.Name, "error", err.Error())
	}
}

func engineContainerStatus(pod *corev1.Pod) *corev1.ContainerStatus {
	for i := range pod.Status.ContainerStatuses {
		if pod.Status.ContainerStatuses[i].Name == engineContainerName {
			return &pod.Status.ContainerStatuses[i]
		}
	}
	if len(pod.Status.ContainerStatuses) == 1 {
		return &pod.Status.ContainerStatuses[0]
	}
	return nil
}

// podOutcome reports whether pod decides the run and, if so, its failure.
func podOutcome(pod *corev1.Pod) (bool, error) {
	status := engineContainerStatus(pod)
	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return true, nil
	case corev1.PodFailed:
		if status != nil && status.State.Terminated != nil {
			terminated := status.State.Terminated
			if terminated.Reason == "OOMKilled" {
				return true, &engine.ProcessUnrecoverableError{Message: "engine driver was killed after running out of memory"}
			}
			if err := engine.ParseReport(terminated.Message); err != nil {
				return true, err
			}
			return true, &engine.ProcessFailedError{
				Message:  fmt.Sprintf("engine exited with code %d", terminated.ExitCode),
				ExitCode: int(terminated.ExitCode),
			}
		}
		switch pod.Status.Reason {
		case "Evicted", "NodeLost", "Terminated", "Shutdown", "NodeShutdown":
			return true, &engine.NodeTerminatedError{Message: messageOr(pod.Status.Message, pod.Status.Reason)}
		}
		return true, &engine.ProcessFailedError{Message: pod.Status.Message}
	case corev1.PodPending:
		if status != nil && status.State.Waiting != nil {
			waiting := status.State.Waiting
			switch waiting.Reason {
			case "ImagePullBackOff", "ErrImagePull", "InvalidImageName":
				return true, &engine.ImagePullError{Message: messageOr(waiting.Message, waiting.Reason)}
			case "CreateContainerConfigError":
				return true, &engine.IllegalConfigError{Message: messageOr(waiting.Message, waiting.Reason)}
			}
		}
		for _, condition := range pod.Status.Conditions {
			if condition.Type == corev1.PodScheduled && condition.Status == corev1.ConditionFalse && condition.Reason == corev1.PodReasonUnschedulable {
				return true, &engine.PodUnschedulableError{Message: messageOr(condition.Message, condition.Reason)}
			}
		}
	}
	return false, nil
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
