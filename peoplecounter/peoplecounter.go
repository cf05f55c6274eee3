// Package peoplecounter implements a people counter as a Viam vision service
package peoplecounter

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/gostream"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/vision"
	vis "go.viam.com/rdk/vision"
	"go.viam.com/rdk/vision/classification"
	objdet "go.viam.com/rdk/vision/objectdetection"
	"go.viam.com/rdk/vision/viscapture"
	viamutils "go.viam.com/utils"

	"github.com/viam-modules/people-counting/counter"
	"github.com/viam-modules/people-counting/history"
	"github.com/viam-modules/people-counting/tracker"
)

// ModelName is the name of the model
const (
	ModelName          = "people-counter"
	PersonEnteredLabel = "person-entered"
	PersonExitedLabel  = "person-exited"
)

var (
	// Here is where we define your new model's colon-delimited-triplet (viam:vision:people-counter)
	Model                  = resource.NewModel("viam", "vision", ModelName)
	errUnimplemented       = errors.New("unimplemented")
	DefaultMinConfidence   = 0.5
	DefaultMaxFrequency    = 10.0
	DefaultTriggerCoolDown = 5.0
	DefaultChosenLabels    = map[string]float64{"person": 0}
)

type currentDetections struct {
	mutex      sync.RWMutex
	detections []objdet.Detection
}

func init() {
	resource.RegisterService(vision.API, Model, resource.Registration[vision.Service, *Config]{
		Constructor: newPeopleCounter,
	})
}

type peopleCounter struct {
	resource.Named
	logger        logging.Logger
	cancelFunc    context.CancelFunc
	cancelContext context.Context

	triggerMutex      sync.Mutex
	triggerCancelFunc context.CancelFunc

	activeBackgroundWorkers sync.WaitGroup
	currDetections          currentDetections
	currImg                 atomic.Pointer[image.Image]
	activeTrigger           atomic.Pointer[string]

	// mutex guards the tracker, the counter and timeStats
	mutex     sync.Mutex
	tracker   *tracker.Tracker
	counter   *counter.Counter
	timeStats frameTimes
	store     *history.Store

	coolDown   float64
	properties vision.Properties

	cam           camera.Camera
	camName       string
	detector      vision.Service
	frequency     float64
	minConfidence float64
	chosenLabels  map[string]float64
}

func newPeopleCounter(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (vision.Service, error) {
	pc := &peopleCounter{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		properties: vision.Properties{
			ClassificationSupported: true,
			DetectionSupported:      true,
			ObjectPCDsSupported:     false,
		},
	}

	if err := pc.Reconfigure(ctx, deps, conf); err != nil {
		return nil, err
	}

	cancelableCtx, cancel := context.WithCancel(context.Background())
	pc.cancelFunc = cancel
	pc.cancelContext = cancelableCtx

	stream, err := pc.cam.Stream(pc.cancelContext, nil)
	if err != nil {
		cancel()
		pc.closeStore()
		return nil, errors.Wrapf(err, "unable to stream from camera %v", pc.camName)
	}

	pc.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		pc.run(stream, pc.cancelContext)
	}, func() {
		pc.cancelFunc()
		stream.Close(pc.cancelContext)
		pc.activeBackgroundWorkers.Done()
	})

	return pc, nil
}

// run is a (cancelable) infinite loop that takes new detections from the camera, tracks them and
// counts zone crossings. It never runs faster than the configured frequency, failed frames included.
func (pc *peopleCounter) run(stream gostream.VideoStream, cancelableCtx context.Context) {
	for {
		select {
		case <-cancelableCtx.Done():
			return
		default:
			start := time.Now()
			if err := pc.nextFrame(stream, cancelableCtx); err != nil {
				pc.logger.Errorf("skipping frame. got err: %s", err)
			} else {
				took := time.Since(start)
				pc.logger.Debugf("frame took %v", took)
				pc.mutex.Lock()
				pc.timeStats.add(took)
				pc.mutex.Unlock()
			}
			waitFor := time.Duration((1/pc.frequency)*float64(time.Second)) - time.Since(start)
			if waitFor > time.Microsecond {
				select {
				case <-cancelableCtx.Done():
					return
				case <-time.After(waitFor):
				}
			}
		}
	}
}

// nextFrame takes fresh detections from a fresh image and runs them through step.
func (pc *peopleCounter) nextFrame(stream gostream.VideoStream, cancelableCtx context.Context) error {
	img, _, err := stream.Next(cancelableCtx)
	if err != nil {
		return errors.Wrap(err, "can't get image")
	}
	if img == nil {
		return errors.New("got nil image")
	}
	detections, err := pc.detector.Detections(cancelableCtx, img, nil)
	if err != nil {
		return errors.Wrap(err, "can't get detections")
	}
	pc.step(detections)
	pc.currImg.Store(&img)
	return nil
}

// step runs one frame's detections through the tracker and the counter, publishes the
// relabeled detections and records any crossing counted this frame.
func (pc *peopleCounter) step(detections []objdet.Detection) []counter.Event {
	filtered := FilterDetections(pc.chosenLabels, detections, pc.minConfidence)

	pc.mutex.Lock()
	tracked := pc.tracker.Update(filtered)
	events := pc.counter.Update(tracked)
	renamed := make([]objdet.Detection, 0, len(tracked))
	for _, td := range tracked {
		renamed = append(renamed, ReplaceLabel(td.Det, TrackLabel(td.Det.Label(), td.ID, pc.counter.State(td.ID))))
	}
	entering, exiting := pc.counter.EnteringCount(), pc.counter.ExitingCount()
	pc.mutex.Unlock()

	pc.currDetections.mutex.Lock()
	pc.currDetections.detections = renamed
	pc.currDetections.mutex.Unlock()

	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		pc.logger.Infof("track %d %s at %v (entering: %d, exiting: %d)", ev.TrackID, ev.Direction, ev.Point, entering, exiting)
		if pc.store == nil {
			continue
		}
		rec := history.RecordFromEvent(ev)
		if err := pc.store.Insert(&rec); err != nil {
			pc.logger.Errorf("can't save crossing. got err: %s", err)
		}
	}
	// trigger classification and schedule "untrigger"
	pc.trigger(crossingLabel(events[len(events)-1].Direction))
	return events
}

func crossingLabel(dir counter.Direction) string {
	if dir == counter.Exiting {
		return PersonExitedLabel
	}
	return PersonEnteredLabel
}

func (pc *peopleCounter) trigger(label string) {
	pc.triggerMutex.Lock()
	defer pc.triggerMutex.Unlock()
	if pc.triggerCancelFunc != nil {
		pc.triggerCancelFunc()
	}
	triggerContext, triggerCancelFunc := context.WithCancel(pc.cancelContext)
	pc.triggerCancelFunc = triggerCancelFunc

	pc.activeTrigger.Store(&label)
	pc.activeBackgroundWorkers.Add(1)

	viamutils.ManagedGo(
		func() {
			coolDownTimer := time.After(time.Duration(pc.coolDown * float64(time.Second)))
			select {
			case <-coolDownTimer:
				pc.activeTrigger.CompareAndSwap(&label, nil)
				return
			case <-triggerContext.Done():
				return
			}
		},
		func() {
			pc.activeBackgroundWorkers.Done()
		})
}

// Reconfigure reconfigures with new settings.
func (pc *peopleCounter) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	if pc.cancelFunc != nil {
		// the capture loop and the counting session belong to one configuration
		return resource.NewMustRebuildError(conf.ResourceName())
	}
	pc.cam = nil
	pc.detector = nil
	pc.timeStats = frameTimes{}

	// This takes the generic resource.Config passed down from the parent and converts it to the
	// model-specific (aka "native") Config structure defined, above making it easier to directly access attributes.
	counterConfig, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return errors.Errorf("Could not assert proper config for %s", ModelName)
	}

	if counterConfig.MaxFrequency < 0 {
		// if 0, will be set to default below
		return errors.New("frequency(Hz) must be a positive number")
	}
	pc.frequency = counterConfig.MaxFrequency
	if pc.frequency == 0 {
		pc.frequency = DefaultMaxFrequency
	}

	//config trigger cool down
	if counterConfig.TriggerCoolDown != nil {
		if *counterConfig.TriggerCoolDown < 0 {
			return errors.New("trigger_cool_down_s is a duration given in seconds and should be above 0.")
		}
		pc.coolDown = *counterConfig.TriggerCoolDown
	} else {
		pc.coolDown = DefaultTriggerCoolDown
	}

	//config min confidence
	if counterConfig.MinConfidence != nil {
		pc.minConfidence = *counterConfig.MinConfidence
	} else {
		pc.minConfidence = DefaultMinConfidence
	}
	if pc.minConfidence < 0 || pc.minConfidence > 1 {
		return errors.New("minimum thresholding confidence must be between 0.0 and 1.0")
	}
	pc.chosenLabels = counterConfig.chosenLabels()

	pc.tracker, pc.counter, err = counterConfig.newPipeline()
	if err != nil {
		return errors.Wrapf(err, "unable to set up counting for %v", conf.ResourceName())
	}

	pc.camName = counterConfig.CameraName
	pc.cam, err = camera.FromDependencies(deps, counterConfig.CameraName)
	if err != nil {
		return errors.Wrapf(err, "unable to get camera %v for people counter", counterConfig.CameraName)
	}
	pc.detector, err = vision.FromDependencies(deps, counterConfig.DetectorName)
	if err != nil {
		return errors.Wrapf(err, "unable to get detector %v for people counter", counterConfig.DetectorName)
	}

	if counterConfig.HistoryDBPath != "" {
		pc.store, err = history.Open(counterConfig.HistoryDBPath)
		if err != nil {
			return err
		}
	}
	pc.logger.Infof("counting session %s started", pc.counter.SessionID())
	return nil
}

func (pc *peopleCounter) latestDetections() []objdet.Detection {
	pc.currDetections.mutex.RLock()
	defer pc.currDetections.mutex.RUnlock()
	return append([]objdet.Detection(nil), pc.currDetections.detections...)
}

func (pc *peopleCounter) latestClassifications() classification.Classifications {
	if label := pc.activeTrigger.Load(); label != nil {
		return classification.Classifications{classification.NewClassification(1, *label)}
	}
	return classification.Classifications{}
}

func (pc *peopleCounter) DetectionsFromCamera(
	ctx context.Context,
	cameraName string,
	extra map[string]interface{},
) ([]objdet.Detection, error) {
	if cameraName != pc.camName {
		return nil, errors.Errorf("Camera name given to method, %v is not the same as configured camera %v", cameraName, pc.camName)
	}
	return pc.Detections(ctx, nil, extra)
}

func (pc *peopleCounter) Detections(ctx context.Context, img image.Image, extra map[string]interface{}) ([]objdet.Detection, error) {
	select {
	case <-pc.cancelContext.Done():
		return nil, pc.cancelContext.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return pc.latestDetections(), nil
	}
}

func (pc *peopleCounter) ClassificationsFromCamera(
	ctx context.Context,
	cameraName string,
	n int,
	extra map[string]interface{},
) (classification.Classifications, error) {
	if cameraName != pc.camName {
		return nil, errors.Errorf("Camera name given to method, %v is not the same as configured camera %v", cameraName, pc.camName)
	}
	return pc.latestClassifications(), nil
}

func (pc *peopleCounter) Classifications(ctx context.Context, img image.Image,
	n int, extra map[string]interface{},
) (classification.Classifications, error) {
	return pc.latestClassifications(), nil
}

func (pc *peopleCounter) GetProperties(ctx context.Context, extra map[string]interface{}) (*vision.Properties, error) {
	return &pc.properties, nil
}

func (pc *peopleCounter) GetObjectPointClouds(
	ctx context.Context,
	cameraName string,
	extra map[string]interface{},
) ([]*vis.Object, error) {
	return nil, errUnimplemented
}

func (pc *peopleCounter) CaptureAllFromCamera(
	ctx context.Context,
	cameraName string,
	opt viscapture.CaptureOptions,
	extra map[string]interface{},
) (viscapture.VisCapture, error) {
	var detections []objdet.Detection
	var classifications classification.Classifications
	var img image.Image
	select {
	case <-pc.cancelContext.Done():
		return viscapture.VisCapture{}, pc.cancelContext.Err()
	case <-ctx.Done():
		return viscapture.VisCapture{}, ctx.Err()
	default:
		if opt.ReturnImage {
			if cameraName != pc.camName {
				return viscapture.VisCapture{}, errors.Errorf("Camera name given to method, %v is not the same as configured camera %v", cameraName, pc.camName)
			}
			if stored := pc.currImg.Load(); stored != nil {
				img = *stored
			}
		}
		if opt.ReturnDetections {
			detections = pc.latestDetections()
		}
		if opt.ReturnClassifications {
			classifications = pc.latestClassifications()
		}
	}
	return viscapture.VisCapture{Image: img, Detections: detections, Classifications: classifications}, nil
}

func (pc *peopleCounter) closeStore() {
	if pc.store == nil {
		return
	}
	if err := pc.store.Close(); err != nil {
		pc.logger.Errorf("can't close history store. got err: %s", err)
	}
	pc.store = nil
}

func (pc *peopleCounter) Close(ctx context.Context) error {
	if pc.cancelFunc != nil {
		pc.cancelFunc()
	}
	pc.activeBackgroundWorkers.Wait()
	pc.closeStore()
	return nil
}
