// Command rappifarma is a CLI client for the prescription marketplace: it
// submits prescription requests, lists and resolves pharmacy offers and
// watches the derived notification feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	fs "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/TomasGamarra/RappiFarma/internal/media/cloudinary"
	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/notify"
	"github.com/TomasGamarra/RappiFarma/internal/service"
	"github.com/TomasGamarra/RappiFarma/internal/store"
	fsstore "github.com/TomasGamarra/RappiFarma/internal/store/firestore"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `rappifarma %s (%s)

Usage:
  rappifarma [global flags] <command> [command flags]

Commands:
  profile   show the profile, or update it with -set
  submit    upload prescription images and fan the request out to pharmacies
  offers    list received offers
  accept    accept one offer (purges the competing ones)
  reject    reject one offer
  watch     stream the notification feed until interrupted

Global flags:
  -project   GCP project id (or GOOGLE_CLOUD_PROJECT)
  -uid       authenticated user id (or RAPPIFARMA_UID)
  -creds     service-account key file (optional, ADC otherwise)
`, version, buildDate)
}

// stringList collects a repeatable flag value.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func envOr(flagVal, envKey string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envKey)
}

func main() {
	project := flag.String("project", "", "GCP project id")
	uid := flag.String("uid", "", "authenticated user id")
	creds := flag.String("creds", "", "service-account key file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	projectID := envOr(*project, "GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		fatal("missing -project (or GOOGLE_CLOUD_PROJECT)")
	}
	userID := envOr(*uid, "RAPPIFARMA_UID")

	var opts []option.ClientOption
	if *creds != "" {
		opts = append(opts, option.WithCredentialsFile(*creds))
	}
	client, err := fs.NewClient(ctx, projectID, opts...)
	if err != nil {
		fatal("firestore client: %v", err)
	}
	defer client.Close()
	st := fsstore.New(client)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "profile":
		err = runProfile(ctx, st, logger, userID, args)
	case "submit":
		err = runSubmit(ctx, st, logger, userID, args)
	case "offers":
		err = runOffers(ctx, st, logger, userID, args)
	case "accept":
		err = runAccept(ctx, st, logger, userID, args)
	case "reject":
		err = runReject(ctx, st, logger, args)
	case "watch":
		err = runWatch(ctx, st, logger, userID)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("%s: %v", cmd, err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runProfile(ctx context.Context, st store.Store, logger *zap.Logger, userID string, args []string) error {
	fset := flag.NewFlagSet("profile", flag.ExitOnError)
	set := fset.Bool("set", false, "update the profile instead of showing it")
	nombre := fset.String("nombre", "", "first name")
	apellido := fset.String("apellido", "", "last name")
	dni := fset.String("dni", "", "document number")
	telefono := fset.String("telefono", "", "phone number")
	direccion := fset.String("direccion", "", "delivery address")
	if err := fset.Parse(args); err != nil {
		return err
	}

	svc := service.NewProfileService(st, logger)
	if *set {
		u := model.User{Nombre: *nombre, Apellido: *apellido, DNI: *dni, Telefono: *telefono, Direccion: *direccion}
		if err := svc.SaveProfile(ctx, userID, u); err != nil {
			return err
		}
		fmt.Println("profile saved")
		return nil
	}

	u, err := svc.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("%s\nDNI: %s\nTel: %s\nDirección: %s\n", u.DisplayName(), u.DNI, u.Telefono, u.Direccion)
	return nil
}

func runSubmit(ctx context.Context, st store.Store, logger *zap.Logger, userID string, args []string) error {
	fset := flag.NewFlagSet("submit", flag.ExitOnError)
	var images stringList
	fset.Var(&images, "image", "prescription image file (repeatable)")
	notes := fset.String("notes", "", "notes for the pharmacies")
	window := fset.Duration("window", service.DefaultWindow, "request expiry window")
	cloud := fset.String("cloud", os.Getenv("CLOUDINARY_CLOUD"), "Cloudinary cloud name")
	preset := fset.String("preset", os.Getenv("CLOUDINARY_PRESET"), "Cloudinary unsigned upload preset")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *cloud == "" || *preset == "" {
		return errors.New("missing -cloud/-preset (or CLOUDINARY_CLOUD/CLOUDINARY_PRESET)")
	}

	var ins []service.Image
	var closers []*os.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	for _, p := range images {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		closers = append(closers, f)
		ins = append(ins, service.Image{Name: filepath.Base(p), Data: f})
	}

	svc := service.NewSubmissionService(st, cloudinary.New(*cloud, *preset), logger)
	res, err := svc.Submit(ctx, userID, ins, *notes, *window)
	if err != nil {
		return err
	}
	fmt.Printf("request %s submitted (%d images)\n", res.RequestID, len(res.Images))
	return nil
}

func runOffers(ctx context.Context, st store.Store, logger *zap.Logger, userID string, args []string) error {
	fset := flag.NewFlagSet("offers", flag.ExitOnError)
	sortBy := fset.String("sort", service.SortByMonto, "sort key: monto | tiempoEspera")
	if err := fset.Parse(args); err != nil {
		return err
	}

	svc := service.NewOfferService(st, logger)
	offers, err := svc.ListOffers(ctx, userID)
	if err != nil {
		return err
	}
	service.SortOffers(offers, *sortBy)

	if len(offers) == 0 {
		fmt.Println("sin ofertas")
		return nil
	}
	for _, o := range offers {
		fmt.Printf("%s  %-20s $%.2f  %d min  [%s]\n",
			o.ID, o.Farmacia, o.PrecioTotal, o.TiempoEspera, model.DisplayState(o))
	}
	return nil
}

func runAccept(ctx context.Context, st store.Store, logger *zap.Logger, userID string, args []string) error {
	fset := flag.NewFlagSet("accept", flag.ExitOnError)
	offerID := fset.String("offer", "", "offer id to accept")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *offerID == "" {
		return errors.New("missing -offer")
	}

	offer, err := loadOffer(ctx, st, *offerID)
	if err != nil {
		return err
	}

	svc := service.NewOfferService(st, logger)
	report, err := svc.Accept(ctx, userID, offer)
	if err != nil {
		return err
	}
	fmt.Printf("offer %s accepted\n", offer.ID)
	if failed := report.Failed(); len(failed) > 0 {
		fmt.Printf("(%d cleanup steps pending, see logs)\n", len(failed))
	}
	return nil
}

func runReject(ctx context.Context, st store.Store, logger *zap.Logger, args []string) error {
	fset := flag.NewFlagSet("reject", flag.ExitOnError)
	offerID := fset.String("offer", "", "offer id to reject")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *offerID == "" {
		return errors.New("missing -offer")
	}

	svc := service.NewOfferService(st, logger)
	if err := svc.Reject(ctx, model.Offer{ID: *offerID}); err != nil {
		return err
	}
	fmt.Printf("offer %s rejected\n", *offerID)
	return nil
}

func runWatch(ctx context.Context, st store.Store, logger *zap.Logger, userID string) error {
	rec := notify.NewReconciler(st, notify.NewReadCache(0), logger)
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, userID) }()

	for {
		select {
		case feed := <-rec.Updates():
			fmt.Printf("--- %d sin leer ---\n", feed.Unread)
			for _, n := range feed.Notifications {
				mark := " "
				if !n.Read {
					mark = "•"
				}
				fmt.Printf("%s %-18s %s (%s)\n", mark, n.Type, n.Message, notify.FormatRelative(n.Timestamp, time.Now()))
			}
		case err := <-done:
			return err
		}
	}
}

func loadOffer(ctx context.Context, st store.Store, id string) (model.Offer, error) {
	doc, err := st.GetOne(ctx, store.OfferPath(id))
	if err != nil {
		return model.Offer{}, err
	}
	var o model.Offer
	if err := doc.DataTo(&o); err != nil {
		return model.Offer{}, fmt.Errorf("decode offer %s: %w", id, err)
	}
	o.ID = doc.ID
	return o, nil
}
